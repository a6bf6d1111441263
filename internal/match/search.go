package match

import (
	"fmt"
	"math"
	"sort"
)

// FindClosest returns up to k rows of table with pairwise-distinct labels
// that are nearest to input, ordered ascending by signed ComputeError.
//
// Rows are first ordered by Euclidean distance to input (ties by row index),
// then the first row seen for each label is kept until k labels are
// collected. If the table holds fewer than k labels, fewer results are
// returned without error.
func FindClosest(table *ReferenceTable, input Vector, k int) ([]Match, error) {
	if err := ValidateQuery(table, input, k); err != nil {
		return nil, err
	}

	order := rankByDistance(table, input)
	selected := selectDistinct(table, order, k)

	matches := make([]Match, len(selected))
	for i, c := range selected {
		matches[i] = Match{
			Index:    c.index,
			Label:    table.labels[c.index],
			Name:     table.Name(table.labels[c.index]),
			Error:    ComputeError(input, table.vectors[c.index]),
			Distance: c.distance,
			Features: append(Vector(nil), table.vectors[c.index]...),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Error < matches[j].Error
	})

	return matches, nil
}

// ValidateQuery reports the error FindClosest would return for these
// arguments without running the search. Input problems are reported
// before an empty table.
func ValidateQuery(table *ReferenceTable, input Vector, k int) error {
	if table == nil {
		return fmt.Errorf("%w: nil reference table", ErrInvalidInput)
	}
	if err := validateInput(input, table.width); err != nil {
		return err
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	if table.Len() == 0 {
		return ErrEmptyReference
	}
	return nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

type candidate struct {
	index    int
	distance float64
}

// rankByDistance orders every row by distance to input, lower index first on ties.
func rankByDistance(table *ReferenceTable, input Vector) []candidate {
	order := make([]candidate, table.Len())
	for i, v := range table.vectors {
		order[i] = candidate{index: i, distance: Euclidean(input, v)}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].distance < order[j].distance
	})
	return order
}

// selectDistinct keeps the first candidate per label, up to k labels.
func selectDistinct(table *ReferenceTable, order []candidate, k int) []candidate {
	seen := make(map[int]struct{}, k)
	selected := make([]candidate, 0, k)
	for _, c := range order {
		label := table.labels[c.index]
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		selected = append(selected, c)
		if len(selected) == k {
			break
		}
	}
	return selected
}

func validateInput(input Vector, width int) error {
	if len(input) != width {
		return fmt.Errorf("%w: expected %d features, got %d", ErrInvalidInput, width, len(input))
	}
	for i, f := range input {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: feature %d is not a finite number", ErrInvalidInput, i)
		}
	}
	return nil
}
