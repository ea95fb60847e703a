package facecap

import (
	"math"
	"sort"
	"sync"

	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// QualityConfig contains parameters for face quality scoring.
type QualityConfig struct {
	// AttributeWeights weight each attribute channel's contribution to the
	// quality score, in channel order. Attributes beyond the weight list
	// are ignored.
	AttributeWeights []float32 `json:"attribute_weights" yaml:"attribute_weights"`

	// DetectionWeight weights the detection score's contribution.
	DetectionWeight float32 `json:"detection_weight" yaml:"detection_weight"`

	// MinFaceArea defines the minimum box area, in pixels, for a face to
	// score above zero. Faces smaller than this are too coarse to compare.
	MinFaceArea float32 `json:"min_face_area" yaml:"min_face_area"`
}

// DefaultQualityConfig returns the scoring configuration for the facecap
// v2 attribute set: equal weight across yaw, pitch, blur, and occlusion,
// the detection score counted once, and a 20x20 pixel floor.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		AttributeWeights: []float32{0.25, 0.25, 0.25, 0.25},
		DetectionWeight:  1.0,
		MinFaceArea:      400,
	}
}

// QualityStats provides statistical analysis of quality scores.
type QualityStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// QualityMetrics summarizes the quality of a set of detected faces.
type QualityMetrics struct {
	// Faces is the total number of detections analyzed.
	Faces int `json:"faces"`

	// SmallFaces is the count of faces below the minimum area, which score
	// zero regardless of their attributes.
	SmallFaces int `json:"small_faces"`

	// Scores holds the score distribution across all faces.
	Scores QualityStats `json:"scores"`
}

// QualityAnalyzer scores detected faces for capture selection.
//
// Attribute channels are trained so that 1.0 is the ideal value: a frontal
// pose, a sharp crop, an unoccluded face. The analyzer folds those
// channels and the detection score into one weighted mean, so a capture
// pipeline can hold the best-scoring crop of a face across a track and
// replace it whenever a better one arrives.
type QualityAnalyzer struct {
	config QualityConfig
	mu     sync.RWMutex
}

// NewQualityAnalyzer creates a quality analyzer.
//
// Arguments:
//   - config: Scoring parameters, typically DefaultQualityConfig
//
// Returns:
//   - *QualityAnalyzer: The initialized analyzer
func NewQualityAnalyzer(config QualityConfig) *QualityAnalyzer {
	return &QualityAnalyzer{
		config: config,
	}
}

// Score computes the quality score of a single detected face.
//
// The score is the weighted mean of the detection score and the face's
// attribute values, in [0, 1]. Faces below the configured minimum area
// score zero.
//
// Arguments:
//   - detection: The detected face to score
//
// Returns:
//   - float32: Quality score in [0, 1]
func (qa *QualityAnalyzer) Score(detection postprocess.Result) float32 {
	qa.mu.RLock()
	defer qa.mu.RUnlock()

	return qa.score(detection)
}

// score computes the quality score without taking the config lock.
func (qa *QualityAnalyzer) score(detection postprocess.Result) float32 {
	if detection.Box.Area() < qa.config.MinFaceArea {
		return 0
	}

	weighted := detection.Score * qa.config.DetectionWeight
	total := qa.config.DetectionWeight
	for i, w := range qa.config.AttributeWeights {
		if i >= len(detection.Attributes) {
			break
		}
		weighted += detection.Attributes[i] * w
		total += w
	}
	if total <= 0 {
		return 0
	}
	return weighted / total
}

// Best returns the highest-scoring face in a detection set.
//
// Ties keep the earlier detection, so the result is stable for a fixed
// input order.
//
// Arguments:
//   - detections: The detected faces to compare
//
// Returns:
//   - postprocess.Result: The best face
//   - float32: Its quality score
//   - bool: False when the set is empty
func (qa *QualityAnalyzer) Best(detections []postprocess.Result) (postprocess.Result, float32, bool) {
	qa.mu.RLock()
	defer qa.mu.RUnlock()

	if len(detections) == 0 {
		return postprocess.Result{}, 0, false
	}

	best := 0
	bestScore := qa.score(detections[0])
	for i := 1; i < len(detections); i++ {
		if s := qa.score(detections[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return detections[best], bestScore, true
}

// Metrics provides a statistical summary of face quality across a
// detection set, for logging and for tuning capture thresholds.
//
// Arguments:
//   - detections: The detected faces to analyze
//
// Returns:
//   - *QualityMetrics: Counts and the score distribution
func (qa *QualityAnalyzer) Metrics(detections []postprocess.Result) *QualityMetrics {
	qa.mu.RLock()
	defer qa.mu.RUnlock()

	metrics := &QualityMetrics{
		Faces: len(detections),
	}
	if len(detections) == 0 {
		return metrics
	}

	scores := make([]float64, len(detections))
	var sum float64
	for i, detection := range detections {
		if detection.Box.Area() < qa.config.MinFaceArea {
			metrics.SmallFaces++
		}
		scores[i] = float64(qa.score(detection))
		sum += scores[i]
	}

	sort.Float64s(scores)

	stats := &metrics.Scores
	stats.Mean = sum / float64(len(scores))
	stats.Min = scores[0]
	stats.Max = scores[len(scores)-1]

	if len(scores)%2 == 0 {
		stats.Median = (scores[len(scores)/2-1] + scores[len(scores)/2]) / 2
	} else {
		stats.Median = scores[len(scores)/2]
	}

	var sumSquaredDiff float64
	for _, s := range scores {
		diff := s - stats.Mean
		sumSquaredDiff += diff * diff
	}
	stats.StdDev = math.Sqrt(sumSquaredDiff / float64(len(scores)))

	return metrics
}

// GetConfig returns the current scoring configuration.
func (qa *QualityAnalyzer) GetConfig() QualityConfig {
	qa.mu.RLock()
	defer qa.mu.RUnlock()
	return qa.config
}

// UpdateConfig replaces the scoring configuration.
func (qa *QualityAnalyzer) UpdateConfig(config QualityConfig) {
	qa.mu.Lock()
	defer qa.mu.Unlock()
	qa.config = config
}
