package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// FeatureWidth is the number of features describing a well segment:
// fase, tipo, lda, dn, metragem, nfases.
const FeatureWidth = 6

// DefaultK is the number of distinct codinomes returned by a search.
const DefaultK = 4

// Vector is an ordered feature vector
type Vector []float64

// Match is a single search result
type Match struct {
	Index    int     `json:"index"`
	Label    int     `json:"label"`
	Name     string  `json:"name,omitempty"`
	Error    float64 `json:"error"`
	Distance float64 `json:"distance"`
	Features Vector  `json:"features"`
}

// ReferenceTable holds the reference feature vectors and their labels.
// It is immutable after construction and safe for concurrent reads.
type ReferenceTable struct {
	width       int
	vectors     []Vector
	labels      []int
	names       map[int]string
	fingerprint string
}

// TableOption configures a ReferenceTable
type TableOption func(*ReferenceTable)

// WithNames attaches display names to labels.
func WithNames(names map[int]string) TableOption {
	return func(t *ReferenceTable) {
		t.names = make(map[int]string, len(names))
		for k, v := range names {
			t.names[k] = v
		}
	}
}

// NewReferenceTable validates and copies the given rows into a new table.
// An empty table is valid; searching it fails with ErrEmptyReference.
func NewReferenceTable(width int, vectors []Vector, labels []int, opts ...TableOption) (*ReferenceTable, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", ErrInvalidTable, width)
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("%w: %d vectors but %d labels", ErrInvalidTable, len(vectors), len(labels))
	}

	t := &ReferenceTable{
		width:   width,
		vectors: make([]Vector, len(vectors)),
		labels:  make([]int, len(labels)),
	}

	for i, v := range vectors {
		if len(v) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrInvalidTable, i, len(v), width)
		}
		for j, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: row %d field %d is not finite", ErrInvalidTable, i, j)
			}
		}
		if labels[i] < 0 {
			return nil, fmt.Errorf("%w: row %d has negative label %d", ErrInvalidTable, i, labels[i])
		}
		t.vectors[i] = append(Vector(nil), v...)
		t.labels[i] = labels[i]
	}

	for _, opt := range opts {
		opt(t)
	}
	t.fingerprint = t.computeFingerprint()

	return t, nil
}

// Len returns the number of rows
func (t *ReferenceTable) Len() int { return len(t.vectors) }

// Width returns the feature width
func (t *ReferenceTable) Width() int { return t.width }

// Row returns a copy of the vector and the label at index i.
func (t *ReferenceTable) Row(i int) (Vector, int) {
	return append(Vector(nil), t.vectors[i]...), t.labels[i]
}

// Name returns the display name of a label, if known.
func (t *ReferenceTable) Name(label int) string {
	return t.names[label]
}

// DistinctLabels returns the number of distinct labels in the table
func (t *ReferenceTable) DistinctLabels() int {
	seen := make(map[int]struct{}, len(t.labels))
	for _, l := range t.labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// Fingerprint identifies the table contents. Tables with equal rows in the
// same order have equal fingerprints.
func (t *ReferenceTable) Fingerprint() string { return t.fingerprint }

func (t *ReferenceTable) computeFingerprint() string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.width))
	h.Write(buf[:])
	for i, v := range t.vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(t.labels[i]))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
