package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestLoader(t *testing.T, format string) *Loader {
	t.Helper()
	l, err := NewLoader(format, zap.NewNop())
	require.NoError(t, err)
	return l
}

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		file string
		want FileFormat
	}{
		{"dados_pocos.csv", FormatCSV},
		{"dados.PARQUET", FormatParquet},
		{"dados.json", FormatJSON},
		{"dados.jsonl", FormatJSON},
		{"dados", FormatCSV},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFileFormat(tt.file), tt.file)
	}
}

func TestNewLoader_UnsupportedFormat(t *testing.T) {
	_, err := NewLoader("xlsx", nil)
	var unsupported *UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "pocos.csv", `Item,Nome,Fase,Tipo,LDA,DN,Metragem,NFases
1,ALFA,1,VERTICAL,100,2 1/2,50,1
2,BETA,2,HORIZONTAL,80,3,40,2
3,GAMA,1,VERTICAL,abc,3,40,2
4,DELTA,1,VERTICAL,90,3
5,,1,VERTICAL,90,3,40,2
6,EPSILON,3,INCLINADO,70,0.75,30,3
`)

	records, result, err := newTestLoader(t, "").Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, result.Format)
	assert.Equal(t, int64(6), result.Rows)
	assert.Equal(t, int64(3), result.Loaded)
	assert.Equal(t, int64(3), result.Skipped)
	assert.Len(t, result.Errors, 3)

	require.Len(t, records, 3)
	assert.Equal(t, RawRecord{
		Item: "1", Nome: "ALFA", Fase: 1, Tipo: "VERTICAL", Lda: 100, Dn: "2 1/2", Metragem: 50, Nfases: 1,
	}, records[0])
	assert.Equal(t, "BETA", records[1].Nome)
	assert.Equal(t, "INCLINADO", records[2].Tipo)
}

func TestLoad_CSVMissingHeader(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, _, err := newTestLoader(t, "").Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := newTestLoader(t, "").Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_JSONLines(t *testing.T) {
	path := writeFile(t, "pocos.json", `{"item":"1","nome":"ALFA","fase":1,"tipo":"VERTICAL","lda":100,"dn":"2 1/2","metragem":50,"nfases":1}
{"item":"2","nome":"BETA","fase":2,"tipo":"HORIZONTAL","lda":80,"dn":3,"metragem":40,"nfases":2}

not json
{"item":"3","nome":"GAMA","fase":"x","tipo":"VERTICAL","lda":80,"dn":3,"metragem":40,"nfases":2}
`)

	records, result, err := newTestLoader(t, "").Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, result.Format)
	assert.Equal(t, int64(4), result.Rows)
	assert.Equal(t, int64(2), result.Skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "2 1/2", records[0].Dn)
	assert.Equal(t, "3", records[1].Dn)
}

func TestLoad_ExplicitFormat(t *testing.T) {
	path := writeFile(t, "pocos.txt", `{"item":"1","nome":"ALFA","fase":1,"tipo":"VERTICAL","lda":100,"dn":"3","metragem":50,"nfases":1}
`)
	records, _, err := newTestLoader(t, "json").Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoad_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pocos.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	rows := []RawRecord{
		{Item: "1", Nome: "ALFA", Fase: 1, Tipo: "VERTICAL", Lda: 100, Dn: "2 1/2", Metragem: 50, Nfases: 1},
		{Item: "2", Nome: "", Fase: 2, Tipo: "HORIZONTAL", Lda: 80, Dn: "3", Metragem: 40, Nfases: 2},
		{Item: "3", Nome: "GAMA", Fase: 2, Tipo: "HORIZONTAL", Lda: 70, Dn: "4", Metragem: 30, Nfases: 2},
	}
	w := parquet.NewGenericWriter[RawRecord](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	records, result, err := newTestLoader(t, "").Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, FormatParquet, result.Format)
	assert.Equal(t, int64(3), result.Rows)
	assert.Equal(t, int64(1), result.Skipped)
	require.Len(t, records, 2)
	assert.Equal(t, rows[0], records[0])
	assert.Equal(t, rows[2], records[1])
}

func TestLoad_NonFiniteNumbers(t *testing.T) {
	path := writeFile(t, "pocos.csv", `item,nome,fase,tipo,lda,dn,metragem,nfases
1,ALFA,1,VERTICAL,100,3,50,1
2,BETA,1,VERTICAL,NaN,3,50,1
3,GAMA,Inf,VERTICAL,100,3,50,1
4,DELTA,1,VERTICAL,100,3,-Inf,1
5,EPSILON,1,VERTICAL,100,3,50,nan
`)

	records, result, err := newTestLoader(t, "").Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.Rows)
	assert.Equal(t, int64(4), result.Skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "ALFA", records[0].Nome)
}

func TestLoad_ParquetNonFinite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pocos.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	rows := []RawRecord{
		{Item: "1", Nome: "ALFA", Fase: 1, Tipo: "VERTICAL", Lda: math.NaN(), Dn: "3", Metragem: 50, Nfases: 1},
		{Item: "2", Nome: "BETA", Fase: 2, Tipo: "HORIZONTAL", Lda: 80, Dn: "3", Metragem: math.Inf(1), Nfases: 2},
		{Item: "3", Nome: "GAMA", Fase: 2, Tipo: "HORIZONTAL", Lda: 70, Dn: "4", Metragem: 30, Nfases: 2},
	}
	w := parquet.NewGenericWriter[RawRecord](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	records, result, err := newTestLoader(t, "").Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "GAMA", records[0].Nome)
}

func TestLoad_Cancelled(t *testing.T) {
	path := writeFile(t, "pocos.csv", "item,nome,fase,tipo,lda,dn,metragem,nfases\n1,ALFA,1,VERTICAL,100,3,50,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestLoader(t, "").Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
