package giac

import (
	"fmt"
	"reflect"
	"strconv"
)

// =============================================================================
// Deferred Values
// =============================================================================

// DeferredFunc computes a value from the compilation context. Callers pass the
// owning service and/or the orchestrator through extra.
type DeferredFunc[T comparable] func(cc *Context, extra ...any) T

// Value is either a literal or a deferred function of the Context.
type Value[T comparable] struct {
	literal T
	fn      DeferredFunc[T]
}

// Common value kinds.
type (
	Text    = Value[string]
	Numeric = Value[int]
	Any     = Value[any]
)

// Literal wraps a concrete value.
func Literal[T comparable](v T) Value[T] {
	return Value[T]{literal: v}
}

// Deferred wraps a function resolved against the Context at use time.
func Deferred[T comparable](fn DeferredFunc[T]) Value[T] {
	return Value[T]{fn: fn}
}

// Resolve returns the literal, or invokes the deferred function once with the
// context and extra arguments. The result is final; it is never re-resolved.
func (v Value[T]) Resolve(cc *Context, extra ...any) T {
	if v.fn != nil {
		return v.fn(cc, extra...)
	}
	return v.literal
}

// IsDeferred reports whether the value is a function of the context.
func (v Value[T]) IsDeferred() bool {
	return v.fn != nil
}

// IsZero reports whether the value was never set. For an interface T only a
// nil literal counts: the dynamic value may be a slice or map, which == would
// panic on, and a literal false or 0 is still a set value.
func (v Value[T]) IsZero() bool {
	if v.fn != nil {
		return false
	}
	if reflect.TypeFor[T]().Kind() == reflect.Interface {
		return any(v.literal) == nil
	}
	var zero T
	return v.literal == zero
}

func (v Value[T]) String() string {
	if v.fn != nil {
		return "<deferred>"
	}
	return fmt.Sprint(v.literal)
}

// =============================================================================
// Helpers
// =============================================================================

// ResolveText resolves a Text value.
func ResolveText(cc *Context, t Text, extra ...any) string {
	return t.Resolve(cc, extra...)
}

// NumericText resolves a Numeric value and renders it in decimal.
func NumericText(cc *Context, n Numeric, extra ...any) string {
	return strconv.Itoa(n.Resolve(cc, extra...))
}

// TextAny lifts a Text into an Any, keeping it deferred when it is.
func TextAny(t Text) Any {
	if !t.IsDeferred() {
		return Literal[any](t.literal)
	}
	return Deferred(func(cc *Context, extra ...any) any {
		return t.Resolve(cc, extra...)
	})
}

// AnyOf wraps an arbitrary literal for environment maps and commands.
func AnyOf(v any) Any {
	return Literal(v)
}

// Texts wraps a list of literal strings.
func Texts(values ...string) []Text {
	out := make([]Text, 0, len(values))
	for _, v := range values {
		out = append(out, Literal(v))
	}
	return out
}
