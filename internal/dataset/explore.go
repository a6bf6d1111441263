package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// CorrelationColumns are the numeric columns compared in a Report
var CorrelationColumns = []string{"fase", "lda", "metragem", "nfases"}

// Report summarises a raw dataset before it is used as a reference table
type Report struct {
	Rows        int                `json:"rows"`
	Columns     []string           `json:"columns"`
	TipoCounts  []ValueCount       `json:"tipo_counts"`
	Numeric     []ColumnStats      `json:"numeric"`
	Categorical []CategoricalStats `json:"categorical"`
	ZeroNfases  int                `json:"zero_nfases"`
	Duplicates  int                `json:"duplicates"`
	Correlation CorrelationMatrix  `json:"correlation"`

	Preprocessed *PreprocessSummary `json:"preprocessed,omitempty"`
}

// ValueCount is the number of occurrences of a value
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnStats describes a numeric column. Std is the sample standard
// deviation and is zero for fewer than two rows.
type ColumnStats struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// CategoricalStats describes a text column
type CategoricalStats struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Unique int    `json:"unique"`
	Top    string `json:"top"`
	Freq   int    `json:"freq"`
}

// CorrelationMatrix holds pairwise Pearson coefficients. Columns with no
// variance correlate as 0.
type CorrelationMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// PreprocessSummary describes what preprocessing kept
type PreprocessSummary struct {
	Rows            int `json:"rows"`
	Labels          int `json:"labels"`
	DroppedTipo     int `json:"dropped_tipo"`
	DroppedDiameter int `json:"dropped_diameter"`
}

// Explore computes the exploratory report of raw. ds may be nil.
func Explore(raw []RawRecord, ds *Dataset) *Report {
	report := &Report{
		Rows:    len(raw),
		Columns: append([]string(nil), Columns...),
	}

	report.TipoCounts = valueCounts(raw, func(r RawRecord) string { return r.Tipo })

	numeric := map[string]func(RawRecord) float64{
		"fase":     func(r RawRecord) float64 { return r.Fase },
		"lda":      func(r RawRecord) float64 { return r.Lda },
		"metragem": func(r RawRecord) float64 { return r.Metragem },
		"nfases":   func(r RawRecord) float64 { return r.Nfases },
	}
	for _, name := range CorrelationColumns {
		report.Numeric = append(report.Numeric, describe(name, raw, numeric[name]))
	}

	text := []struct {
		name string
		get  func(RawRecord) string
	}{
		{"item", func(r RawRecord) string { return r.Item }},
		{"nome", func(r RawRecord) string { return r.Nome }},
		{"tipo", func(r RawRecord) string { return r.Tipo }},
		{"dn", func(r RawRecord) string { return r.Dn }},
	}
	for _, c := range text {
		report.Categorical = append(report.Categorical, describeText(c.name, raw, c.get))
	}

	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if r.Nfases == 0 {
			report.ZeroNfases++
		}
		key := recordKey(r)
		if _, ok := seen[key]; ok {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}
	}

	report.Correlation = correlation(raw, numeric)

	if ds != nil {
		report.Preprocessed = &PreprocessSummary{
			Rows:            ds.Len(),
			DroppedTipo:     ds.DroppedTipo,
			DroppedDiameter: ds.DroppedDiameter,
		}
		if ds.Encoder != nil {
			report.Preprocessed.Labels = len(ds.Encoder.Classes())
		}
	}

	return report
}

// HasDuplicates reports whether any row repeats an earlier one
func (r *Report) HasDuplicates() bool { return r.Duplicates > 0 }

func valueCounts(raw []RawRecord, get func(RawRecord) string) []ValueCount {
	counts := make(map[string]int)
	for _, r := range raw {
		counts[get(r)]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// welford accumulates mean and variance in a single pass
type welford struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

func (w *welford) add(x float64) {
	w.n++
	if w.n == 1 {
		w.min, w.max = x, x
	} else {
		w.min = math.Min(w.min, x)
		w.max = math.Max(w.max, x)
	}
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

func (w *welford) std() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

func describe(name string, raw []RawRecord, get func(RawRecord) float64) ColumnStats {
	var w welford
	for _, r := range raw {
		w.add(get(r))
	}
	return ColumnStats{Name: name, Count: w.n, Mean: w.mean, Std: w.std(), Min: w.min, Max: w.max}
}

func describeText(name string, raw []RawRecord, get func(RawRecord) string) CategoricalStats {
	stats := CategoricalStats{Name: name, Count: len(raw)}
	counts := valueCounts(raw, get)
	stats.Unique = len(counts)
	if len(counts) > 0 {
		stats.Top = counts[0].Value
		stats.Freq = counts[0].Count
	}
	return stats
}

func correlation(raw []RawRecord, numeric map[string]func(RawRecord) float64) CorrelationMatrix {
	cols := CorrelationColumns
	m := CorrelationMatrix{
		Columns: append([]string(nil), cols...),
		Values:  make([][]float64, len(cols)),
	}
	for i := range cols {
		m.Values[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			m.Values[i][j] = pearson(raw, numeric[cols[i]], numeric[cols[j]])
		}
	}
	return m
}

func pearson(raw []RawRecord, x, y func(RawRecord) float64) float64 {
	n := float64(len(raw))
	if n < 2 {
		return 0
	}
	var mx, my float64
	for _, r := range raw {
		mx += x(r)
		my += y(r)
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for _, r := range raw {
		dx := x(r) - mx
		dy := y(r) - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

func recordKey(r RawRecord) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		r.Item, r.Nome,
		strconv.FormatFloat(r.Fase, 'g', -1, 64), r.Tipo,
		strconv.FormatFloat(r.Lda, 'g', -1, 64), r.Dn,
		strconv.FormatFloat(r.Metragem, 'g', -1, 64),
		strconv.FormatFloat(r.Nfases, 'g', -1, 64))
}
