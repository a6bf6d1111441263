// Package classifier trains an optional codinome classifier over the
// training split. Its predictions are informational only; closest-match
// search never depends on them.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/evaluation"
	"github.com/sjwhitworth/golearn/knn"
	"github.com/sjwhitworth/golearn/trees"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/match"
)

// Kind selects the learning algorithm
type Kind string

const (
	KindTree Kind = "tree"
	KindKNN  Kind = "knn"
)

var (
	ErrUnknownKind   = errors.New("unknown classifier kind")
	ErrEmptyTraining = errors.New("training set is empty")
)

var featureNames = []string{"fase", "tipo", "lda", "dn", "metragem", "nfases"}

// Config contains classifier settings
type Config struct {
	Kind       Kind
	Neighbours int // knn only
}

// learner is satisfied by every golearn classifier used here
type learner interface {
	Fit(base.FixedDataGrid) error
	Predict(base.FixedDataGrid) (base.FixedDataGrid, error)
}

// Model is a trained classifier. It is safe for concurrent use.
type Model struct {
	kind    Kind
	learner learner
	train   *base.DenseInstances
	attrs   []base.Attribute // feature attributes in featureNames order
	logger  *zap.Logger

	mu sync.Mutex
}

// Train fits a classifier of the configured kind on vectors and labels.
func Train(cfg Config, vectors []match.Vector, labels []int, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyTraining
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("%d vectors but %d labels", len(vectors), len(labels))
	}

	var l learner
	switch cfg.Kind {
	case KindTree:
		// A zero prune split trains on every row, keeping the tree deterministic.
		l = trees.NewID3DecisionTree(0)
	case KindKNN:
		n := cfg.Neighbours
		if n <= 0 {
			n = 1
		}
		cls := knn.NewKnnClassifier("euclidean", "linear", n)
		cls.AllowOptimisations = false
		l = cls
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	grid, attrs, err := newGrid(vectors, labels)
	if err != nil {
		return nil, err
	}
	if err := l.Fit(grid); err != nil {
		return nil, fmt.Errorf("failed to fit %s classifier: %w", cfg.Kind, err)
	}

	logger.Info("Classifier trained",
		zap.String("kind", string(cfg.Kind)),
		zap.Int("rows", len(vectors)))

	return &Model{kind: cfg.Kind, learner: l, train: grid, attrs: attrs, logger: logger}, nil
}

// Kind returns the algorithm the model was trained with
func (m *Model) Kind() Kind { return m.kind }

// Predict returns the predicted codinome for v.
func (m *Model) Predict(v match.Vector) (int, error) {
	if len(v) != match.FeatureWidth {
		return 0, fmt.Errorf("%w: expected %d features, got %d", match.ErrInvalidInput, match.FeatureWidth, len(v))
	}
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: feature %d is not a finite number", match.ErrInvalidInput, i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	query := base.NewStructuralCopy(m.train)
	if err := query.Extend(1); err != nil {
		return 0, err
	}
	specs, err := featureSpecs(query, m.attrs)
	if err != nil {
		return 0, err
	}
	for j, f := range v {
		query.Set(specs[j], 0, base.PackFloatToBytes(f))
	}

	predictions, err := m.learner.Predict(query)
	if err != nil {
		return 0, fmt.Errorf("prediction failed: %w", err)
	}
	return strconv.Atoi(base.GetClass(predictions, 0))
}

// Evaluate returns the accuracy of the model on the given rows.
func (m *Model) Evaluate(vectors []match.Vector, labels []int) (float64, error) {
	if len(vectors) == 0 {
		return 0, ErrEmptyTraining
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	test, err := m.gridLike(vectors, labels)
	if err != nil {
		return 0, err
	}
	predictions, err := m.learner.Predict(test)
	if err != nil {
		return 0, fmt.Errorf("prediction failed: %w", err)
	}
	cm, err := evaluation.GetConfusionMatrix(test, predictions)
	if err != nil {
		return 0, fmt.Errorf("failed to build confusion matrix: %w", err)
	}
	accuracy := evaluation.GetAccuracy(cm)

	m.logger.Info("Classifier evaluated",
		zap.String("kind", string(m.kind)),
		zap.Int("rows", len(vectors)),
		zap.Float64("accuracy", accuracy))

	return accuracy, nil
}

// newGrid builds a golearn grid with float features and a categorical class.
// It also returns the feature attributes in featureNames order.
func newGrid(vectors []match.Vector, labels []int) (*base.DenseInstances, []base.Attribute, error) {
	grid := base.NewDenseInstances()

	attrs := make([]base.Attribute, len(featureNames))
	specs := make([]base.AttributeSpec, len(featureNames))
	for i, name := range featureNames {
		attrs[i] = base.NewFloatAttribute(name)
		specs[i] = grid.AddAttribute(attrs[i])
	}
	class := new(base.CategoricalAttribute)
	class.SetName("codinome")
	classSpec := grid.AddAttribute(class)
	if err := grid.AddClassAttribute(class); err != nil {
		return nil, nil, err
	}

	if err := fill(grid, specs, classSpec, class, vectors, labels); err != nil {
		return nil, nil, err
	}
	return grid, attrs, nil
}

// gridLike builds a grid sharing the training attributes.
func (m *Model) gridLike(vectors []match.Vector, labels []int) (*base.DenseInstances, error) {
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("%d vectors but %d labels", len(vectors), len(labels))
	}
	grid := base.NewStructuralCopy(m.train)
	specs, err := featureSpecs(grid, m.attrs)
	if err != nil {
		return nil, err
	}
	class, ok := grid.AllClassAttributes()[0].(*base.CategoricalAttribute)
	if !ok {
		return nil, errors.New("class attribute is not categorical")
	}
	classSpec, err := grid.GetAttribute(class)
	if err != nil {
		return nil, err
	}
	if err := fill(grid, specs, classSpec, class, vectors, labels); err != nil {
		return nil, err
	}
	return grid, nil
}

func fill(grid *base.DenseInstances, specs []base.AttributeSpec, classSpec base.AttributeSpec,
	class *base.CategoricalAttribute, vectors []match.Vector, labels []int) error {
	if err := grid.Extend(len(vectors)); err != nil {
		return err
	}
	for i, v := range vectors {
		if len(v) != len(specs) {
			return fmt.Errorf("%w: row %d has %d features", match.ErrInvalidInput, i, len(v))
		}
		for j, f := range v {
			grid.Set(specs[j], i, base.PackFloatToBytes(f))
		}
		grid.Set(classSpec, i, class.GetSysValFromString(strconv.Itoa(labels[i])))
	}
	return nil
}

// featureSpecs resolves attrs against grid by attribute, not by position:
// golearn does not keep attribute order stable across structural copies.
func featureSpecs(grid *base.DenseInstances, attrs []base.Attribute) ([]base.AttributeSpec, error) {
	specs := make([]base.AttributeSpec, len(attrs))
	for i, a := range attrs {
		spec, err := grid.GetAttribute(a)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", a.GetName(), err)
		}
		specs[i] = spec
	}
	return specs, nil
}
