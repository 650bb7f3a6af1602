package giac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// EnvVars Tests
// =============================================================================

func TestEnvVars_RequiredIsIdempotent(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	first := cc.EnvVars().RequiredEnvVar("DB_USER", "Database user", nil)
	second := cc.EnvVars().RequiredEnvVar("DB_USER", "ignored", nil)

	assert.Same(t, first, second)
	assert.Len(t, cc.EnvVars().Required(), 1)
	assert.Empty(t, cc.EnvVars().Defaulted())
	assert.Equal(t, "Database user", first.Purpose)
}

func TestEnvVars_DefaultIsIdempotent(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	first := cc.EnvVars().DefaultEnvVar("EP_BOUNDARY", "Boundary", "appx", nil)
	second := cc.EnvVars().DefaultEnvVar("EP_BOUNDARY", "Boundary", "other", nil)

	assert.Same(t, first, second)
	assert.Len(t, cc.EnvVars().Defaulted(), 1)
	assert.Equal(t, "${EP_BOUNDARY:-appx}", second.Prepare())
}

func TestEnvVars_ScopeIsPartOfKey(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	db := NewTypicalServiceConfig("postgresql-engine", ImageNamed("postgres"))
	cache := NewTypicalServiceConfig("cache", ImageNamed("redis"))

	unscoped := cc.EnvVars().DefaultEnvVar("PUBL_PORT", "port", 5432, nil)
	dbScoped := cc.EnvVars().DefaultEnvVar("PUBL_PORT", "port", 5432, db)
	cacheScoped := cc.EnvVars().DefaultEnvVar("PUBL_PORT", "port", 6379, cache)
	again := cc.EnvVars().DefaultEnvVar("PUBL_PORT", "port", 1, db)

	assert.NotSame(t, unscoped, dbScoped)
	assert.NotSame(t, dbScoped, cacheScoped)
	assert.Same(t, dbScoped, again)
	assert.Len(t, cc.EnvVars().Defaulted(), 3)

	assert.Equal(t, "PUBL_PORT", unscoped.QualifiedName())
	assert.Equal(t, "POSTGRESQL_ENGINE_PUBL_PORT", dbScoped.QualifiedName())
	assert.Equal(t, "${POSTGRESQL_ENGINE_PUBL_PORT:-5432}", dbScoped.Prepare())
	assert.Equal(t, "${CACHE_PUBL_PORT:-6379}", cacheScoped.Prepare())
}

func TestEnvVars_RequiredAndDefaultedAreDisjoint(t *testing.T) {
	cc := NewContext(".", Literal("appx"))

	cc.EnvVars().RequiredEnvVar("A", "a", nil)
	cc.EnvVars().DefaultEnvVar("B", "b", "x", nil)
	cc.EnvVars().RequiredEnvVar("C", "c", nil)

	required := cc.EnvVars().Required()
	defaulted := cc.EnvVars().Defaulted()

	require.Len(t, required, 2)
	require.Len(t, defaulted, 1)
	assert.Equal(t, "A", required[0].Name)
	assert.Equal(t, "C", required[1].Name)
	assert.Equal(t, "B", defaulted[0].Name)
	assert.Equal(t, "${A}", required[0].Prepare())
}

func TestEnvVars_ListenerCalledOnNewRegistrationOnly(t *testing.T) {
	var seen []string
	cc := NewContext(".", Literal("appx"), WithEnvVarListener(func(p *EnvVarPlaceholder) {
		seen = append(seen, p.QualifiedName())
	}))

	cc.EnvVars().RequiredEnvVar("A", "a", nil)
	cc.EnvVars().RequiredEnvVar("A", "a", nil)
	cc.EnvVars().DefaultEnvVar("B", "b", 1, nil)

	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestEnvVars_Lookup(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	p := cc.EnvVars().DefaultEnvVar("EP_EXECENV", "env", "sandbox", nil)

	found, ok := cc.EnvVars().Lookup("EP_EXECENV")
	assert.True(t, ok)
	assert.Same(t, p, found)

	_, ok = cc.EnvVars().Lookup("MISSING")
	assert.False(t, ok)
}

func TestToEnvVarCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PUBL_PORT", "PUBL_PORT"},
		{"publPort", "PUBL_PORT"},
		{"reverse-proxy", "REVERSE_PROXY"},
		{"db.host", "DB_HOST"},
		{"ep_execenv", "EP_EXECENV"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToEnvVarCase(tt.in))
		})
	}
}
