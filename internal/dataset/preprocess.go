package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/raaihank/wellmatch/internal/match"
)

// ErrInvalidDiameter is returned by ParseDiameter for values it cannot read
var ErrInvalidDiameter = errors.New("invalid diameter")

// Tipo encodings
const (
	TipoHorizontal = 0
	TipoVertical   = 1
)

// Features are the numeric fields of a preprocessed well segment
type Features struct {
	Fase     float64 `json:"fase"`
	Tipo     float64 `json:"tipo"`
	Lda      float64 `json:"lda"`
	Dn       float64 `json:"dn"`
	Metragem float64 `json:"metragem"`
	Nfases   float64 `json:"nfases"`
}

// Vector returns the features in search order
func (f Features) Vector() match.Vector {
	return match.Vector{f.Fase, f.Tipo, f.Lda, f.Dn, f.Metragem, f.Nfases}
}

// Dataset is a preprocessed, label-encoded dataset
type Dataset struct {
	Features []Features
	Labels   []int
	Encoder  *LabelEncoder

	// Rows dropped during preprocessing
	DroppedTipo     int
	DroppedDiameter int
}

// Len returns the number of rows
func (d *Dataset) Len() int { return len(d.Features) }

// Vectors returns the feature vectors of every row
func (d *Dataset) Vectors() []match.Vector {
	out := make([]match.Vector, len(d.Features))
	for i, f := range d.Features {
		out[i] = f.Vector()
	}
	return out
}

// Subset returns the rows at idx, in that order, sharing the encoder
func (d *Dataset) Subset(idx []int) *Dataset {
	sub := &Dataset{
		Features: make([]Features, len(idx)),
		Labels:   make([]int, len(idx)),
		Encoder:  d.Encoder,
	}
	for i, j := range idx {
		sub.Features[i] = d.Features[j]
		sub.Labels[i] = d.Labels[j]
	}
	return sub
}

// ReferenceTable builds a search table from the dataset with label names attached.
func (d *Dataset) ReferenceTable() (*match.ReferenceTable, error) {
	var opts []match.TableOption
	if d.Encoder != nil {
		opts = append(opts, match.WithNames(d.Encoder.Names()))
	}
	return match.NewReferenceTable(match.FeatureWidth, d.Vectors(), d.Labels, opts...)
}

// Preprocess keeps VERTICAL and HORIZONTAL segments, parses diameters and
// encodes nome into integer codinomes.
func Preprocess(records []RawRecord) (*Dataset, error) {
	ds := &Dataset{}
	names := make([]string, 0, len(records))

	for _, r := range records {
		tipo, ok := EncodeTipo(r.Tipo)
		if !ok {
			ds.DroppedTipo++
			continue
		}
		dn, err := ParseDiameter(r.Dn)
		if err != nil {
			ds.DroppedDiameter++
			continue
		}
		ds.Features = append(ds.Features, Features{
			Fase:     r.Fase,
			Tipo:     tipo,
			Lda:      r.Lda,
			Dn:       dn,
			Metragem: r.Metragem,
			Nfases:   r.Nfases,
		})
		names = append(names, r.Nome)
	}

	ds.Encoder = FitLabelEncoder(names)
	ds.Labels = make([]int, len(names))
	for i, n := range names {
		label, ok := ds.Encoder.Encode(n)
		if !ok {
			return nil, fmt.Errorf("label %q missing from encoder", n)
		}
		ds.Labels[i] = label
	}

	return ds, nil
}

// EncodeTipo maps VERTICAL to 1 and HORIZONTAL to 0. Any other value is rejected.
func EncodeTipo(tipo string) (float64, bool) {
	switch strings.ToUpper(strings.TrimSpace(tipo)) {
	case "VERTICAL":
		return TipoVertical, true
	case "HORIZONTAL":
		return TipoHorizontal, true
	default:
		return 0, false
	}
}

// ParseDiameter reads a nominal diameter. Values of up to two characters
// are integers, "a b/c" is a mixed fraction, "b/c" a plain fraction, and
// anything else a decimal number.
func ParseDiameter(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDiameter)
	}

	if len(s) <= 2 {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
		}
		return float64(n), nil
	}

	if strings.Contains(s, "/") {
		parts := strings.Fields(s)
		switch len(parts) {
		case 1:
			return parseFraction(parts[0])
		case 2:
			whole, err := strconv.Atoi(parts[0])
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
			}
			frac, err := parseFraction(parts[1])
			if err != nil {
				return 0, err
			}
			return float64(whole) + frac, nil
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
	}
	return v, nil
}

func parseFraction(s string) (float64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a fraction", ErrInvalidDiameter, s)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiameter, s)
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: zero denominator in %q", ErrInvalidDiameter, s)
	}
	return float64(n) / float64(d), nil
}

// LabelEncoder maps names to integer labels in sorted order
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabelEncoder assigns 0..n-1 to the sorted unique names.
func FitLabelEncoder(names []string) *LabelEncoder {
	index := make(map[string]int)
	for _, n := range names {
		index[n] = 0
	}
	classes := make([]string, 0, len(index))
	for n := range index {
		classes = append(classes, n)
	}
	sort.Strings(classes)
	for i, n := range classes {
		index[n] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Encode returns the label of name
func (e *LabelEncoder) Encode(name string) (int, bool) {
	l, ok := e.index[name]
	return l, ok
}

// Decode returns the name of label
func (e *LabelEncoder) Decode(label int) (string, bool) {
	if label < 0 || label >= len(e.classes) {
		return "", false
	}
	return e.classes[label], true
}

// Classes returns the known names in label order
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Names returns the label to name mapping
func (e *LabelEncoder) Names() map[int]string {
	out := make(map[int]string, len(e.classes))
	for i, n := range e.classes {
		out[i] = n
	}
	return out
}
