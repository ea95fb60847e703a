// Package models - registry for models.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-facecap/models/facecap"
	"github.com/nvr-ai/go-facecap/models/model"
)

// NewModel creates a new detection model instance based on the specified model name.
//
// This factory function serves as the primary entry point for model creation,
// routing requests to the appropriate family constructor while providing a
// unified interface for model instantiation across the system.
//
// The factory pattern ensures that model creation is centralized, making it
// easier to add new model families and maintain consistent initialization logic.
//
// Arguments:
//   - args: Configuration parameters specifying the model name, location, and
//     optional head and suppression overrides.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//
// - error: An error if model creation fails, the model name is unsupported, or validation errors
// occur.
//
// Example:
//
// ```go
//
//	args := model.NewModelArgs{
//	    Name: model.ModelNameFacecapV2N,
//	    Path: "/models/facecap-v2-n.onnx",
//	}
//
// faceModel, err := models.NewModel(args)
//
//	if err != nil {
//	    log.Fatalf("Failed to create face model: %v", err)
//	}
//
// fmt.Printf("Created %s model from family %s\n", faceModel.Options().Name,
// faceModel.Options().Family)
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameFacecapV2N, model.ModelNameFacecapV2S, "":
		m, err := facecap.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}
