package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/wellmatch/internal/match"
)

func TestParseDiameter(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3", 3},
		{"12", 12},
		{" 4 ", 4},
		{"2 1/2", 2.5},
		{"1 3/4", 1.75},
		{"1/2", 0.5},
		{"0.75", 0.75},
		{"100", 100},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDiameter(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseDiameter_Invalid(t *testing.T) {
	for _, in := range []string{"", "ab", "2 1/0", "1/0", "2 x/2", "1 2 3/4", "abc", "2 1/2/3", "NaN", "Inf", "-Inf", "1e400"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDiameter(in)
			assert.ErrorIs(t, err, ErrInvalidDiameter)
		})
	}
}

func TestEncodeTipo(t *testing.T) {
	v, ok := EncodeTipo("VERTICAL")
	assert.True(t, ok)
	assert.Equal(t, float64(TipoVertical), v)

	v, ok = EncodeTipo(" horizontal ")
	assert.True(t, ok)
	assert.Equal(t, float64(TipoHorizontal), v)

	_, ok = EncodeTipo("INCLINADO")
	assert.False(t, ok)
}

func TestLabelEncoder(t *testing.T) {
	enc := FitLabelEncoder([]string{"GAMA", "ALFA", "BETA", "ALFA"})

	assert.Equal(t, []string{"ALFA", "BETA", "GAMA"}, enc.Classes())

	l, ok := enc.Encode("GAMA")
	assert.True(t, ok)
	assert.Equal(t, 2, l)

	_, ok = enc.Encode("DELTA")
	assert.False(t, ok)

	name, ok := enc.Decode(1)
	assert.True(t, ok)
	assert.Equal(t, "BETA", name)

	_, ok = enc.Decode(3)
	assert.False(t, ok)

	assert.Equal(t, map[int]string{0: "ALFA", 1: "BETA", 2: "GAMA"}, enc.Names())
}

func TestPreprocess(t *testing.T) {
	raw := []RawRecord{
		{Nome: "GAMA", Fase: 1, Tipo: "VERTICAL", Lda: 100, Dn: "2 1/2", Metragem: 50, Nfases: 1},
		{Nome: "ALFA", Fase: 2, Tipo: "HORIZONTAL", Lda: 80, Dn: "3", Metragem: 40, Nfases: 2},
		{Nome: "BETA", Fase: 3, Tipo: "INCLINADO", Lda: 70, Dn: "3", Metragem: 30, Nfases: 3},
		{Nome: "DELTA", Fase: 4, Tipo: "VERTICAL", Lda: 60, Dn: "1/0", Metragem: 20, Nfases: 4},
		{Nome: "ALFA", Fase: 5, Tipo: "vertical", Lda: 50, Dn: "0.75", Metragem: 10, Nfases: 5},
		{Nome: "EPSILON", Fase: 6, Tipo: "VERTICAL", Lda: 40, Dn: "NaN", Metragem: 5, Nfases: 6},
	}

	ds, err := Preprocess(raw)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 1, ds.DroppedTipo)
	assert.Equal(t, 2, ds.DroppedDiameter)

	// Only kept rows are encoded, in sorted order
	assert.Equal(t, []string{"ALFA", "GAMA"}, ds.Encoder.Classes())
	assert.Equal(t, []int{1, 0, 0}, ds.Labels)

	assert.Equal(t, match.Vector{1, 1, 100, 2.5, 50, 1}, ds.Features[0].Vector())
	assert.Equal(t, match.Vector{2, 0, 80, 3, 40, 2}, ds.Features[1].Vector())
	assert.Equal(t, match.Vector{5, 1, 50, 0.75, 10, 5}, ds.Features[2].Vector())

	table, err := ds.ReferenceTable()
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "GAMA", table.Name(1))
}

func TestDataset_Subset(t *testing.T) {
	ds := &Dataset{
		Features: []Features{{Fase: 1}, {Fase: 2}, {Fase: 3}},
		Labels:   []int{0, 1, 2},
		Encoder:  FitLabelEncoder([]string{"A", "B", "C"}),
	}

	sub := ds.Subset([]int{2, 0})
	assert.Equal(t, []int{2, 0}, sub.Labels)
	assert.Equal(t, float64(3), sub.Features[0].Fase)
	assert.Same(t, ds.Encoder, sub.Encoder)
}
