package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/match"
)

func trainingRows() ([]match.Vector, []int) {
	vectors := []match.Vector{
		{1, 1, 100, 2.5, 50, 1},
		{1, 1, 105, 2.5, 55, 1},
		{2, 0, 200, 4, 150, 2},
		{2, 0, 210, 4, 160, 2},
		{3, 1, 300, 6, 250, 3},
		{3, 1, 310, 6, 260, 3},
	}
	labels := []int{0, 0, 1, 1, 2, 2}
	return vectors, labels
}

func TestTrain_KNN(t *testing.T) {
	vectors, labels := trainingRows()

	model, err := Train(Config{Kind: KindKNN, Neighbours: 1}, vectors, labels, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, KindKNN, model.Kind())

	assertPredictsTraining(t, model, vectors, labels)

	got, err := model.Predict(match.Vector{2, 0, 205, 4, 155, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	accuracy, err := model.Evaluate(vectors, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy)
}

func TestTrain_Tree(t *testing.T) {
	vectors, labels := trainingRows()

	model, err := Train(Config{Kind: KindTree}, vectors, labels, nil)
	require.NoError(t, err)

	assertPredictsTraining(t, model, vectors, labels)

	accuracy, err := model.Evaluate(vectors, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy)
}

// assertPredictsTraining predicts every training row several times. Each
// prediction builds a fresh query grid, so feature placement must not
// depend on attribute order.
func assertPredictsTraining(t *testing.T, model *Model, vectors []match.Vector, labels []int) {
	t.Helper()
	for round := 0; round < 10; round++ {
		for i, v := range vectors {
			got, err := model.Predict(v)
			require.NoError(t, err)
			assert.Equal(t, labels[i], got, "round %d row %d", round, i)
		}
	}
}

func TestEvaluate_Repeatable(t *testing.T) {
	vectors, labels := trainingRows()
	model, err := Train(Config{Kind: KindKNN, Neighbours: 1}, vectors, labels, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		accuracy, err := model.Evaluate(vectors, labels)
		require.NoError(t, err)
		assert.Equal(t, 1.0, accuracy)
	}
}

func TestTrain_Errors(t *testing.T) {
	vectors, labels := trainingRows()

	_, err := Train(Config{Kind: "forest"}, vectors, labels, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Train(Config{Kind: KindKNN}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyTraining)

	_, err = Train(Config{Kind: KindKNN}, vectors, labels[:2], nil)
	assert.Error(t, err)
}

func TestPredict_InvalidInput(t *testing.T) {
	vectors, labels := trainingRows()
	model, err := Train(Config{Kind: KindKNN, Neighbours: 1}, vectors, labels, nil)
	require.NoError(t, err)

	_, err = model.Predict(match.Vector{1, 2, 3})
	assert.ErrorIs(t, err, match.ErrInvalidInput)

	_, err = model.Predict(match.Vector{1, 1, math.NaN(), 2.5, 50, 1})
	assert.ErrorIs(t, err, match.ErrInvalidInput)
}
