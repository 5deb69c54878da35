package random

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Index returns a uniformly distributed index in [0, n).
func Index(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("random index of empty range")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

// Pick returns a uniformly chosen element of slice.
func Pick[T any](slice []T) (T, error) {
	var zero T
	i, err := Index(len(slice))
	if err != nil {
		return zero, err
	}
	return slice[i], nil
}
