package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Columns is the positional column layout of a well segment dataset.
var Columns = []string{"item", "nome", "fase", "tipo", "lda", "dn", "metragem", "nfases"}

// RawRecord is a single well segment as read from a dataset file, before
// any filtering or encoding.
type RawRecord struct {
	Item     string  `parquet:"item" json:"item" db:"item"`
	Nome     string  `parquet:"nome" json:"nome" db:"nome"`
	Fase     float64 `parquet:"fase" json:"fase" db:"fase"`
	Tipo     string  `parquet:"tipo" json:"tipo" db:"tipo"`
	Lda      float64 `parquet:"lda" json:"lda" db:"lda"`
	Dn       string  `parquet:"dn" json:"dn" db:"dn"`
	Metragem float64 `parquet:"metragem" json:"metragem" db:"metragem"`
	Nfases   float64 `parquet:"nfases" json:"nfases" db:"nfases"`
}

// LoadResult describes the outcome of loading a dataset file
type LoadResult struct {
	Format   FileFormat    `json:"format"`
	Rows     int64         `json:"rows"`
	Loaded   int64         `json:"loaded"`
	Skipped  int64         `json:"skipped"`
	Duration time.Duration `json:"duration"`
	Errors   []string      `json:"errors,omitempty"`
}

// maxRecordedErrors caps LoadResult.Errors; Skipped still counts every row.
const maxRecordedErrors = 20

func (r *LoadResult) skip(row int64, err error) {
	r.Skipped++
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", row, err))
	}
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// ParseFileFormat validates an explicit format name. An empty name means
// the format is detected from the file extension.
func ParseFileFormat(name string) (FileFormat, error) {
	switch f := FileFormat(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatCSV, FormatParquet, FormatJSON:
		return f, nil
	default:
		return "", &UnsupportedFormatError{Format: name}
	}
}

// UnsupportedFormatError is returned for unknown dataset formats
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported file format: " + e.Format
}
