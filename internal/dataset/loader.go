package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// Loader reads well segment datasets from CSV, Parquet or JSON-lines files
type Loader struct {
	format FileFormat
	logger *zap.Logger
}

// NewLoader creates a loader. An empty format detects the format from the
// file extension.
func NewLoader(format string, logger *zap.Logger) (*Loader, error) {
	f, err := ParseFileFormat(format)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{format: f, logger: logger}, nil
}

// Load reads every well segment in path. Malformed rows are skipped and
// counted in the returned LoadResult.
func (l *Loader) Load(ctx context.Context, path string) ([]RawRecord, *LoadResult, error) {
	start := time.Now()

	format := l.format
	if format == "" {
		format = DetectFileFormat(path)
	}
	result := &LoadResult{Format: format}

	l.logger.Info("Loading dataset",
		zap.String("file", path),
		zap.String("format", string(format)))

	file, err := os.Open(path)
	if err != nil {
		return nil, result, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	var records []RawRecord
	switch format {
	case FormatCSV:
		records, err = l.readCSV(ctx, file, result)
	case FormatParquet:
		records, err = l.readParquet(ctx, file, result)
	case FormatJSON:
		records, err = l.readJSON(ctx, file, result)
	default:
		return nil, result, &UnsupportedFormatError{Format: string(format)}
	}
	if err != nil {
		return nil, result, fmt.Errorf("%s processing failed: %w", format, err)
	}

	result.Loaded = int64(len(records))
	result.Duration = time.Since(start)

	l.logger.Info("Dataset loaded",
		zap.Int64("rows", result.Rows),
		zap.Int64("loaded", result.Loaded),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return records, result, nil
}

func (l *Loader) readCSV(ctx context.Context, r io.Reader, result *LoadResult) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Columns are renamed positionally, so only the header's presence matters.
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	l.logger.Debug("CSV header detected", zap.Strings("columns", header))

	var records []RawRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.Rows++

		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, err
			}
			l.logger.Warn("Failed to read CSV record", zap.Error(err))
			result.skip(result.Rows, err)
			continue
		}

		record, err := parseCSVRecord(fields)
		if err != nil {
			l.logger.Debug("Invalid CSV record", zap.Int64("row", result.Rows), zap.Error(err))
			result.skip(result.Rows, err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func parseCSVRecord(fields []string) (RawRecord, error) {
	if len(fields) != len(Columns) {
		return RawRecord{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(fields))
	}

	numbers := make(map[string]float64, 4)
	for _, idx := range []int{2, 4, 6, 7} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
		if err != nil {
			return RawRecord{}, fmt.Errorf("column %s: %w", Columns[idx], err)
		}
		numbers[Columns[idx]] = v
	}

	record := RawRecord{
		Item:     strings.TrimSpace(fields[0]),
		Nome:     strings.TrimSpace(fields[1]),
		Fase:     numbers["fase"],
		Tipo:     fields[3],
		Lda:      numbers["lda"],
		Dn:       strings.TrimSpace(fields[5]),
		Metragem: numbers["metragem"],
		Nfases:   numbers["nfases"],
	}
	return record, validateRecord(record)
}

func (l *Loader) readParquet(ctx context.Context, file *os.File, result *LoadResult) ([]RawRecord, error) {
	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []RawRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var record RawRecord
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		result.Rows++

		if err := validateRecord(record); err != nil {
			result.skip(result.Rows, err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// jsonRecord accepts dn as either a string ("2 1/2") or a number.
type jsonRecord struct {
	RawRecord
	Dn json.RawMessage `json:"dn"`
}

func (l *Loader) readJSON(ctx context.Context, r io.Reader, result *LoadResult) ([]RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var records []RawRecord
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result.Rows++

		record, err := parseJSONRecord([]byte(line))
		if err != nil {
			l.logger.Debug("Invalid JSON record", zap.Int64("row", result.Rows), zap.Error(err))
			result.skip(result.Rows, err)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func parseJSONRecord(line []byte) (RawRecord, error) {
	var jr jsonRecord
	if err := json.Unmarshal(line, &jr); err != nil {
		return RawRecord{}, err
	}

	record := jr.RawRecord
	if len(jr.Dn) > 0 {
		if jr.Dn[0] == '"' {
			if err := json.Unmarshal(jr.Dn, &record.Dn); err != nil {
				return RawRecord{}, fmt.Errorf("column dn: %w", err)
			}
		} else {
			var n float64
			if err := json.Unmarshal(jr.Dn, &n); err != nil {
				return RawRecord{}, fmt.Errorf("column dn: %w", err)
			}
			record.Dn = strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	record.Item = strings.TrimSpace(record.Item)
	record.Nome = strings.TrimSpace(record.Nome)
	record.Dn = strings.TrimSpace(record.Dn)

	return record, validateRecord(record)
}

// validateRecord rejects records that can never become a reference row.
// Tipo and dn are checked later during preprocessing.
func validateRecord(record RawRecord) error {
	if record.Nome == "" {
		return errors.New("empty nome")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"fase", record.Fase},
		{"lda", record.Lda},
		{"metragem", record.Metragem},
		{"nfases", record.Nfases},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("column %s: %v is not a finite number", f.name, f.value)
		}
	}
	return nil
}
