package postprocess

import "fmt"

// ConfigurationError reports a head or suppression setting that can never
// work: thresholds outside [0,1], mismatched anchor and stride counts, an
// unknown activation or score mode. It is returned at construction time
// only; once a model is built its configuration is valid for the model's
// lifetime.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ShapeMismatchError reports a raw network output whose shape cannot be
// reconciled with the configured head layout. It surfaces on first use of
// the malformed output rather than at configuration time, because tensor
// shapes are only known once data arrives. State built from earlier valid
// calls (cached grids) is left intact.
type ShapeMismatchError struct {
	// Scale is the index of the offending output, or -1 when the error is
	// not tied to a single scale (wrong output count, wrong batch size).
	Scale int
	Want  string
	Got   string
}

func (e *ShapeMismatchError) Error() string {
	if e.Scale < 0 {
		return fmt.Sprintf("output shape mismatch: want %s, got %s", e.Want, e.Got)
	}
	return fmt.Sprintf("output shape mismatch at scale %d: want %s, got %s", e.Scale, e.Want, e.Got)
}
