package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"lsd-worker-go/internal/models"
)

const riskFeatureCount = 4

// tree holds one decision tree in the flat array layout scikit-learn uses.
// A node is a leaf when ChildrenLeft[node] == -1.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forestFile struct {
	NFeatures int    `json:"n_features"`
	Classes   []int  `json:"classes"`
	Trees     []tree `json:"trees"`
}

// Forest evaluates an exported random forest in process. It is never mutated after load.
type Forest struct {
	nFeatures  int
	classes    []int
	trees      []tree
	highColumn int
}

// LoadForest reads a forest export from disk
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open forest model: %v", models.ErrModelUnavailable, err)
	}
	defer f.Close()

	forest, err := DecodeForest(f)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("trees", len(forest.trees)).
		Msg("Risk classifier forest loaded")
	return forest, nil
}

// DecodeForest parses and validates a forest export
func DecodeForest(r io.Reader) (*Forest, error) {
	var raw forestFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode forest model: %v", models.ErrModelUnavailable, err)
	}
	if raw.NFeatures != riskFeatureCount {
		return nil, fmt.Errorf("%w: forest expects %d features, want %d", models.ErrModelUnavailable, raw.NFeatures, riskFeatureCount)
	}
	if len(raw.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", models.ErrModelUnavailable)
	}

	highColumn := -1
	for i, c := range raw.Classes {
		if c == int(models.RiskHigh) {
			highColumn = i
		}
	}
	if len(raw.Classes) != 2 || highColumn < 0 {
		return nil, fmt.Errorf("%w: forest classes must be [0 1], got %v", models.ErrModelUnavailable, raw.Classes)
	}

	for i, t := range raw.Trees {
		if err := t.validate(raw.NFeatures, len(raw.Classes)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", models.ErrModelUnavailable, i, err)
		}
	}

	return &Forest{
		nFeatures:  raw.NFeatures,
		classes:    raw.Classes,
		trees:      raw.Trees,
		highColumn: highColumn,
	}, nil
}

func (t tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if left == -1 {
			if len(t.Value[node]) != nClasses {
				return fmt.Errorf("leaf %d has %d class values", node, len(t.Value[node]))
			}
			continue
		}
		// children always come after their parent in exported trees, so walks terminate
		if left <= node || right <= node || left >= n || right >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", node, left, right)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", node, f)
		}
	}
	return nil
}

// leaf returns the normalized class distribution of the leaf x falls into
func (t tree) leaf(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Assess averages the per-tree class probabilities and predicts the class with the larger
// mean. Ties predict LOW.
func (f *Forest) Assess(ctx context.Context, features models.WeatherFeatures) (models.RiskVerdict, error) {
	x := features.Vector()
	proba := make([]float64, len(f.classes))
	for _, t := range f.trees {
		values := t.leaf(x)
		total := 0.0
		for _, v := range values {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range values {
			proba[i] += v / total
		}
	}
	for i := range proba {
		proba[i] /= float64(len(f.trees))
	}

	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}

	return models.RiskVerdict{
		PredictedClass: models.RiskClass(f.classes[best]),
		Probability:    proba[f.highColumn],
	}, nil
}

func (f *Forest) Name() string { return "forest" }
