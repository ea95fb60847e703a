package models

import (
	"fmt"

	"github.com/nvr-ai/go-facecap/models/model"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// Attribute represents one per-face quality channel.
type Attribute struct {
	// The channel index within the attribute block.
	Index int
	// The human-readable label.
	Name string
}

// AttributeSet ties a model name to its ordered attribute channels.
type AttributeSet struct {
	// Model that produces these attributes.
	Model model.Name
	// Attributes in channel order.
	Attributes []Attribute
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// FacecapV2Attributes returns the attribute set shared by the facecap v2
// models: pose angles first, then the crop quality channels. All four are
// trained so 1.0 is ideal.
func FacecapV2Attributes(name model.Name) *AttributeSet {
	return &AttributeSet{
		Model: name,
		Attributes: []Attribute{
			{Index: 0, Name: "yaw"},
			{Index: 1, Name: "pitch"},
			{Index: 2, Name: "blur"},
			{Index: 3, Name: "occlusion"},
		},
	}
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *AttributeSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Attributes))
	for _, a := range s.Attributes {
		s.nameToIdx[a.Name] = a.Index
	}
}

// CheckCount verifies the set matches a head configured with n attribute
// channels.
func (s *AttributeSet) CheckCount(n int) error {
	if len(s.Attributes) != n {
		return &postprocess.ConfigurationError{
			Field:  "num_attributes",
			Reason: fmt.Sprintf("attribute set %q names %d channels, head has %d", s.Model, len(s.Attributes), n),
		}
	}
	return nil
}

// AttributeManager holds all registered attribute sets.
type AttributeManager struct {
	sets map[model.Name]*AttributeSet
}

// NewAttributeManager initializes and registers the given sets.
func NewAttributeManager(allSets ...*AttributeSet) *AttributeManager {
	mgr := &AttributeManager{sets: make(map[model.Name]*AttributeSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		mgr.sets[set.Model] = set
	}
	return mgr
}

// DefaultAttributeManager returns a manager with the facecap v2 sets
// registered.
func DefaultAttributeManager() *AttributeManager {
	return NewAttributeManager(
		FacecapV2Attributes(model.ModelNameFacecapV2N),
		FacecapV2Attributes(model.ModelNameFacecapV2S),
	)
}

// GetName returns the attribute name for a given model and channel index.
func (m *AttributeManager) GetName(name model.Name, idx int) (string, error) {
	set, ok := m.sets[name]
	if !ok {
		return "", fmt.Errorf("model %q not registered", name)
	}
	if idx < 0 || idx >= len(set.Attributes) {
		return "", fmt.Errorf("index %d out of range for model %q", idx, name)
	}
	return set.Attributes[idx].Name, nil
}

// GetIndex returns the channel index for a given model and attribute name.
func (m *AttributeManager) GetIndex(name model.Name, attr string) (int, error) {
	set, ok := m.sets[name]
	if !ok {
		return -1, fmt.Errorf("model %q not registered", name)
	}
	idx, ok := set.nameToIdx[attr]
	if !ok {
		return -1, fmt.Errorf("attribute %q not found for model %q", attr, name)
	}
	return idx, nil
}

// Annotate maps a detection's attribute values to their names, for logs
// and for capture sidecar metadata. Values beyond the registered set are
// dropped; missing trailing values are omitted rather than zero-filled.
func (m *AttributeManager) Annotate(name model.Name, result postprocess.Result) (map[string]float32, error) {
	set, ok := m.sets[name]
	if !ok {
		return nil, fmt.Errorf("model %q not registered", name)
	}
	annotated := make(map[string]float32, len(set.Attributes))
	for _, a := range set.Attributes {
		if a.Index >= len(result.Attributes) {
			continue
		}
		annotated[a.Name] = result.Attributes[a.Index]
	}
	return annotated, nil
}
