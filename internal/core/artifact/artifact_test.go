package artifact

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Artifact Tests
// =============================================================================

func TestArtifact_AppendText(t *testing.T) {
	a := New(SQL)

	a.AppendText("CREATE EXTENSION IF NOT EXISTS pgcrypto;\n")
	a.AppendText("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";\n")

	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS pgcrypto;\nCREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";\n", a.Text())
	assert.Equal(t, SQL, a.Nature())
}

func TestArtifact_Preamble(t *testing.T) {
	a := NewWithPreamble(YAML, "# first", "# second")
	a.AppendText("version: \"3.3\"\n")

	assert.Equal(t, YAML.DefaultPreamble+"# first\n# second\nversion: \"3.3\"\n", a.Text())
	assert.Equal(t, []byte(a.Text()), a.Bytes())
}

func TestApplyOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want fs.FileMode
		set  bool
	}{
		{"default", nil, DefaultMode, false},
		{"executable", []Option{Executable()}, 0o755, true},
		{"secret", []Option{Secret()}, 0o600, true},
		{"last wins", []Option{Executable(), WithChmod(0o700)}, 0o700, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wo := ApplyOptions(tt.opts...)
			assert.Equal(t, tt.want, wo.Mode)
			assert.Equal(t, tt.set, wo.Chmoded)
		})
	}
}

func TestHandlerFunc(t *testing.T) {
	var gotKey string
	var gotMode fs.FileMode
	h := HandlerFunc(func(_ context.Context, key string, _ *Artifact, opts ...Option) error {
		gotKey = key
		gotMode = ApplyOptions(opts...).Mode
		return nil
	})

	err := h.Persist(context.Background(), "acme.json", New(JSON), Secret())

	assert.NoError(t, err)
	assert.Equal(t, "acme.json", gotKey)
	assert.Equal(t, fs.FileMode(0o600), gotMode)
}
