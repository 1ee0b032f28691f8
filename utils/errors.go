package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	return errors.Errorf("expected %T but got %T", *new(ExpectedT), actual)
}

// NewOutOfRangeError is used when a value lies outside of its permitted range.
func NewOutOfRangeError(name string, value, low, high float64) error {
	return errors.Errorf("%s = %v is outside of [%v, %v]", name, value, low, high)
}
