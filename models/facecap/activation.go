package facecap

import "github.com/nvr-ai/go-facecap/models/postprocess"

// ActivationKind names the convolution activation a facecap backbone was
// built with. The set is closed: the network weights bake the activation
// in, so an unknown kind means the configuration does not describe any
// model that exists, and it is rejected when the model is constructed
// rather than on the first batch.
type ActivationKind string

const (
	// ActivationReLU6 is the facecap default.
	ActivationReLU6 ActivationKind = "relu6"
	// ActivationReLU is the plain rectifier.
	ActivationReLU ActivationKind = "relu"
	// ActivationLeakyReLU uses the conventional 0.01 negative slope.
	ActivationLeakyReLU ActivationKind = "leakyrelu"
	// ActivationHardswish is the mobile-friendly swish approximation.
	ActivationHardswish ActivationKind = "hardswish"
)

// Valid reports whether the kind is one of the supported activations.
func (k ActivationKind) Valid() error {
	switch k {
	case ActivationReLU6, ActivationReLU, ActivationLeakyReLU, ActivationHardswish:
		return nil
	default:
		return &postprocess.ConfigurationError{
			Field:  "activation",
			Reason: "unknown activation " + string(k),
		}
	}
}

// Apply runs the activation on a single value. The head itself never
// activates anything (the network has already done so); this exists for
// conversion tooling that re-materializes backbone layers and needs the
// exact transforms.
func (k ActivationKind) Apply(x float32) float32 {
	switch k {
	case ActivationReLU6:
		return min(max(x, 0), 6)
	case ActivationReLU:
		return max(x, 0)
	case ActivationLeakyReLU:
		if x >= 0 {
			return x
		}
		return 0.01 * x
	case ActivationHardswish:
		return x * min(max(x+3, 0), 6) / 6
	default:
		return x
	}
}
