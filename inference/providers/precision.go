// Package providers - Inference precision selection.
package providers

// Precision represents the numeric precision a provider executes a model
// with. Not every backend supports every precision; OpenVINO resolves
// PrecisionAccuracy to the device's default input precision.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionAccuracy Precision = "ACCURACY"
	PrecisionINT8     Precision = "INT8"
	PrecisionFP16     Precision = "FP16"
	PrecisionFP32     Precision = "FP32"
)
