package bintree

import "fmt"

// Optional is a scalar attribute that may be absent.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Or returns the value, or def when absent.
func (o Optional[T]) Or(def T) T {
	if o.Valid {
		return o.Value
	}
	return def
}

func (o Optional[T]) String() string {
	if !o.Valid {
		return "<none>"
	}
	return fmt.Sprint(o.Value)
}
