package giac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Value Tests
// =============================================================================

func TestValue_Literal(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	v := Literal("postgres:13")

	assert.Equal(t, "postgres:13", v.Resolve(cc))
	assert.False(t, v.IsDeferred())
	assert.False(t, v.IsZero())
}

func TestValue_Deferred(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	v := Deferred(func(cc *Context, _ ...any) string {
		return cc.ResolvedName() + "_db"
	})

	assert.Equal(t, "appx_db", v.Resolve(cc))
	assert.True(t, v.IsDeferred())
	assert.False(t, v.IsZero())
	assert.Equal(t, "<deferred>", v.String())
}

func TestValue_DeferredReceivesExtra(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	sc := NewTypicalServiceConfig("web", ImageNamed("nginx"))

	v := Deferred(func(cc *Context, extra ...any) string {
		if len(extra) != 1 {
			return ""
		}
		return extra[0].(*ServiceConfig).Name(cc) + ".local"
	})

	assert.Equal(t, "web.local", v.Resolve(cc, sc))
}

func TestValue_NotCached(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	calls := 0

	v := Deferred(func(*Context, ...any) int {
		calls++
		return calls
	})

	assert.Equal(t, 1, v.Resolve(cc))
	assert.Equal(t, 2, v.Resolve(cc))
}

func TestValue_Zero(t *testing.T) {
	var text Text
	var num Numeric
	var anything Any

	assert.True(t, text.IsZero())
	assert.True(t, num.IsZero())
	assert.True(t, anything.IsZero())
	assert.False(t, AnyOf([]string{"a"}).IsZero())
}

func TestValue_ZeroUncomparableLiteral(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.False(t, AnyOf([]string{"a"}).IsZero())
		assert.False(t, AnyOf(map[string]any{"k": 1}).IsZero())
		assert.False(t, AnyOf([]string(nil)).IsZero())
	})
	assert.False(t, AnyOf(false).IsZero())
	assert.False(t, AnyOf(0).IsZero())
	assert.True(t, AnyOf(nil).IsZero())
	assert.True(t, Value[any]{}.IsZero())
	assert.False(t, Literal("").IsDeferred())
	assert.True(t, Literal("").IsZero())
	assert.False(t, Deferred(func(*Context, ...any) string { return "" }).IsZero())
}

func TestNumericAsText(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	assert.Equal(t, "5432", NumericAsText(Literal(5432)).Resolve(cc))
}

func TestTextAny(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	lit := TextAny(Literal("x"))
	def := TextAny(Deferred(func(cc *Context, _ ...any) string { return cc.ResolvedName() }))

	assert.False(t, lit.IsDeferred())
	assert.Equal(t, "x", lit.Resolve(cc))
	assert.True(t, def.IsDeferred())
	assert.Equal(t, "appx", def.Resolve(cc))
}
