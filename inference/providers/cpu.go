// Package providers - CPU based execution provider.
package providers

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// CPUOptions contains arguments for the CPU provider. The CPU provider is
// always available and needs no explicit session configuration; threading
// is controlled through OptimizationConfig.
type CPUOptions struct {
	// UseArena enables the CPU memory arena allocator.
	// Default: true
	UseArena bool `json:"useArena" yaml:"useArena"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CPUOptions) isProviderOptions() {}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider(options CPUOptions) *CPUProvider {
	return &CPUProvider{
		options: options,
	}
}
