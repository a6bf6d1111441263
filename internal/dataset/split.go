package dataset

import (
	"errors"
	"math"
	"math/rand"
)

// ErrInvalidFraction is returned when a test fraction is outside (0, 1)
var ErrInvalidFraction = errors.New("test fraction must be in (0, 1)")

// Partition is a train/test split of a dataset
type Partition struct {
	Train *Dataset
	Test  *Dataset
}

// Split shuffles the rows with a seeded permutation and takes the first
// ceil(n*testFraction) of them as the test split. The same seed always
// yields the same partition.
func Split(ds *Dataset, testFraction float64, seed int64) (*Partition, error) {
	if testFraction <= 0 || testFraction >= 1 || math.IsNaN(testFraction) {
		return nil, ErrInvalidFraction
	}

	n := ds.Len()
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest > n {
		nTest = n
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	return &Partition{
		Train: ds.Subset(perm[nTest:]),
		Test:  ds.Subset(perm[:nTest]),
	}, nil
}
