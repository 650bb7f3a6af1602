package compose

import (
	"context"
	"testing"

	"github.com/artpar/giac/internal/core/giac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const cyclicManifest = `
services:
  a:
    image: x
    depends_on:
      - b
  b:
    image: x
    depends_on:
      - a
`

// =============================================================================
// Verify Tests
// =============================================================================

func TestVerify_CompiledDocumentLoads(t *testing.T) {
	cc := newContext()
	port := cc.EnvVars().DefaultEnvVar("PUBL_PORT", "published port", 5432, nil)
	user := cc.EnvVars().RequiredEnvVar("DB_USER", "database user", nil)
	db := giac.Configured(cc, giac.NewTypicalServiceConfig("db", giac.ImageNamed("postgres:13"),
		giac.WithPorts(giac.PublishText(port.Text(), 5432)),
		giac.WithEnvironment(map[string]giac.Any{"POSTGRES_USER": user.Any()}),
	))
	db.Volumes = []giac.Volume{giac.EngineStoreVolume{
		LocalVolName:    giac.Literal("db-storage"),
		ContainerFsPath: giac.Literal("/var/lib/postgresql/data"),
		Mutable:         &giac.Mutable{ContentType: "data", RecoveryType: giac.Irrecoverable},
	}}
	giac.Configured(cc, giac.NewTypicalServiceConfig("api", giac.ImageNamed("postgrest/postgrest"),
		giac.WithDependsOn(db),
		giac.WithPorts(giac.Expose(3000)),
	))
	doc := compile(t, cc, nil)
	out, err := doc.Marshal()
	require.NoError(t, err)

	m, err := Verify(context.Background(), out, VerifyEnv(cc, map[string]string{"DB_USER": "app"}))

	require.NoError(t, err)
	require.Len(t, m.Services, 2)
	assert.Equal(t, "api", m.Services[0].Name)
	assert.Equal(t, []string{"db"}, m.Services[0].DependsOn)
	assert.Equal(t, []string{"5432:5432"}, m.Services[1].Ports)
	assert.Equal(t, []string{"network"}, m.Networks)
	assert.Equal(t, []string{"db-storage"}, m.Volumes)
	assert.Equal(t, []string{"db", "api"}, StartOrder(m.Services))
	assert.Equal(t, []Placeholder{
		{Name: "PUBL_PORT", Default: "5432", HasDefault: true},
		{Name: "DB_USER"},
	}, m.Placeholders)
	assert.Empty(t, UnregisteredPlaceholders(cc, m))
}

func TestVerify_EmptyInput(t *testing.T) {
	_, err := Verify(context.Background(), []byte("  \n"), nil)

	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestVerify_InvalidYAML(t *testing.T) {
	_, err := Verify(context.Background(), []byte("services: [unclosed"), nil)

	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestVerify_CircularDependency(t *testing.T) {
	_, err := Verify(context.Background(), []byte(cyclicManifest), nil)

	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestVerify_UnregisteredPlaceholders(t *testing.T) {
	cc := newContext()
	cc.EnvVars().RequiredEnvVar("KNOWN", "known", nil)
	manifest := `
services:
  web:
    image: nginx
    environment:
      A: ${KNOWN}
      B: ${UNKNOWN:-x}
`

	m, err := Verify(context.Background(), []byte(manifest), map[string]string{"KNOWN": "1"})

	require.NoError(t, err)
	assert.Equal(t, []Placeholder{{Name: "UNKNOWN", Default: "x", HasDefault: true}}, UnregisteredPlaceholders(cc, m))
}

// =============================================================================
// Placeholder Tests
// =============================================================================

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Placeholder
	}{
		{"none", "plain text", nil},
		{"required", "${A}", []Placeholder{{Name: "A"}}},
		{"default", "${A:-sandbox}", []Placeholder{{Name: "A", Default: "sandbox", HasDefault: true}}},
		{"empty default", "${A:-}", []Placeholder{{Name: "A", HasDefault: true}}},
		{"dedupe", "${A}.${B}.${A}", []Placeholder{{Name: "A"}, {Name: "B"}}},
		{"escaped", "$${A} ${B}", []Placeholder{{Name: "B"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPlaceholders(tt.text))
		})
	}
}

func TestStartOrder_CycleFallsBackToNameOrder(t *testing.T) {
	services := []ManifestService{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "api"},
	}

	assert.Equal(t, []string{"api", "web", "a", "b"}, StartOrder(services))
}
