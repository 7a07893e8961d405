package chart_behavior

// Value is either a literal or a zero-argument resolver. Resolvers are called on every
// Resolve; nothing is cached.
type Value[T any] struct {
	literal T
	fn      func() T
	set     bool
}

// Literal returns a Value that always resolves to v.
func Literal[T any](v T) Value[T] {
	return Value[T]{literal: v, set: true}
}

// Func returns a Value that resolves by calling fn.
func Func[T any](fn func() T) Value[T] {
	return Value[T]{fn: fn, set: fn != nil}
}

// Resolve returns the literal or the resolver's current result.
// The zero Value resolves to T's zero value.
func (v Value[T]) Resolve() T {
	if v.fn != nil {
		return v.fn()
	}
	return v.literal
}

// IsZero reports whether the Value was never set.
func (v Value[T]) IsZero() bool {
	return !v.set
}
