// Package model - Shared contracts for detection model families.
package model

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyFacecap is the anchor-based face capture family: a
	// three-scale detection head predicting face boxes plus per-face
	// quality attributes.
	ModelFamilyFacecap Family = "facecap"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameFacecapV2N is the nano facecap v2 head.
	ModelNameFacecapV2N Name = "facecap-v2-n"
	// ModelNameFacecapV2S is the small facecap v2 head.
	ModelNameFacecapV2S Name = "facecap-v2-s"
)

// BaseModel carries the identity and tensor bindings shared by all models.
type BaseModel struct {
	Name    Name
	Family  Family
	Path    string
	Inputs  []string
	Outputs []string
}

// Options is a marker interface for model-specific options.
type Options interface {
	IsOptions()
}

// Model is a detection head bound to a loaded network. PostProcess takes
// the network's raw per-scale outputs for one batch and returns final
// detections per batch item.
//
// Preprocessing is deliberately not part of this contract: input layout is
// a property of the pipeline (letterbox vs. plain resize, frame source),
// not of the head, and lives in models/model/preprocess.
type Model interface {
	Options() BaseModel
	PostProcess(outputs []*tensor.Dense) ([][]postprocess.Result, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name    Name                   `json:"name" yaml:"name"`
	Path    string                 `json:"path" yaml:"path"`
	NMS     *postprocess.NMSConfig `json:"nms" yaml:"nms"`
	Family  Family                 `json:"family" yaml:"family"`
	Inputs  []string               `json:"inputs" yaml:"inputs"`
	Outputs []string               `json:"outputs" yaml:"outputs"`
	// Options carries family-specific settings (anchor layout, activation,
	// attribute count). Nil selects the family's defaults.
	Options Options `json:"-" yaml:"-"`
}
