// Package providers - Execution providers for ONNX Runtime sessions.
package providers

import (
	"fmt"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// Backends returns all supported execution provider backends.
func Backends() []ProviderBackend {
	return []ProviderBackend{
		CPUProviderBackend,
		CoreMLProviderBackend,
		OpenVINOProviderBackend,
		CUDAProviderBackend,
		DNNLProviderBackend,
	}
}

// ParseBackend resolves a backend name to a ProviderBackend. An empty name
// resolves to the CPU backend.
//
// Arguments:
//   - name: The backend name, e.g. "cpu" or "coreml".
//
// Returns:
//   - ProviderBackend: The resolved backend.
//   - error: An error if the name does not match a supported backend.
func ParseBackend(name string) (ProviderBackend, error) {
	if name == "" {
		return CPUProviderBackend, nil
	}
	for _, backend := range Backends() {
		if name == string(backend) {
			return backend, nil
		}
	}
	return "", fmt.Errorf("no matching provider backend registered: %s", name)
}

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Options() ProviderOptions
}

// NewProvider creates a new provider based on the options type.
//
// Arguments:
//   - options: The options for the provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the provider creation fails.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	case DNNLProviderOptions:
		return NewDNNLProvider(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider options type: %T", opts)
	}
}

// NewBackendProvider creates a provider with default options for the given
// backend. Used when only the backend name is known, e.g. from a config
// file or a command-line flag.
//
// Arguments:
//   - backend: The backend to use.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if no provider is registered for the backend.
func NewBackendProvider(backend ProviderBackend) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend, "":
		return NewCPUProvider(CPUOptions{}), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(CoreMLOptions{}), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(OpenVINOOptions{}), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(CUDAOptions{}), nil
	case DNNLProviderBackend:
		return NewDNNLProvider(DNNLProviderOptions{}), nil
	default:
		return nil, fmt.Errorf("no matching provider backend registered: %s", backend)
	}
}
