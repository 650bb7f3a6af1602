// Package artifact defines the in-memory text artifacts produced by a compile
// run and the Handler contract that turns them into bytes somewhere.
package artifact

import (
	"context"
	"io/fs"
	"strings"
)

// =============================================================================
// Natures
// =============================================================================

// Nature describes the kind of text an artifact holds.
type Nature struct {
	Name            string
	DefaultFileExt  string
	CommentPrefix   string
	DefaultPreamble string
}

var (
	YAML = Nature{Name: "yaml", DefaultFileExt: ".yaml", CommentPrefix: "#",
		DefaultPreamble: "# Code generated by giac. DO NOT EDIT.\n"}
	Dockerfile = Nature{Name: "dockerfile", DefaultFileExt: "", CommentPrefix: "#",
		DefaultPreamble: "# Code generated by giac. DO NOT EDIT.\n"}
	SQL   = Nature{Name: "sql", DefaultFileExt: ".sql", CommentPrefix: "--"}
	Shell = Nature{Name: "shell", DefaultFileExt: ".sh", CommentPrefix: "#"}
	JSON  = Nature{Name: "json", DefaultFileExt: ".json"}
	Env   = Nature{Name: "env", DefaultFileExt: ".env", CommentPrefix: "#",
		DefaultPreamble: "# Code generated by giac. Copy to .env and fill in the blanks.\n"}
	Text = Nature{Name: "text", DefaultFileExt: ".txt"}
)

// =============================================================================
// Artifact
// =============================================================================

// Artifact is a mutable text buffer. Text is appended in order; the preamble
// is written ahead of it.
type Artifact struct {
	nature   Nature
	preamble string
	body     strings.Builder
}

// New creates an empty artifact of the given nature.
func New(n Nature) *Artifact {
	return &Artifact{nature: n, preamble: n.DefaultPreamble}
}

// NewWithPreamble creates an artifact with preamble lines written after the
// nature's default preamble.
func NewWithPreamble(n Nature, lines ...string) *Artifact {
	a := New(n)
	if len(lines) > 0 {
		a.preamble += strings.Join(lines, "\n") + "\n"
	}
	return a
}

// AppendText appends text verbatim.
func (a *Artifact) AppendText(text string) {
	a.body.WriteString(text)
}

// Nature returns the artifact nature.
func (a *Artifact) Nature() Nature {
	return a.nature
}

// Text returns the preamble followed by the body.
func (a *Artifact) Text() string {
	if a.preamble == "" {
		return a.body.String()
	}
	return a.preamble + a.body.String()
}

// Bytes returns Text as a byte slice.
func (a *Artifact) Bytes() []byte {
	return []byte(a.Text())
}

// =============================================================================
// Persistence Contract
// =============================================================================

// DefaultMode is used when no chmod option is given.
const DefaultMode fs.FileMode = 0o644

// Common modes.
const (
	ExecutableMode fs.FileMode = 0o755
	SecretMode     fs.FileMode = 0o600
)

// WriteOptions configure a single Persist call.
type WriteOptions struct {
	Mode    fs.FileMode
	Chmoded bool
}

// Option configures a Persist call.
type Option func(*WriteOptions)

// WithChmod sets the file mode of the persisted artifact.
func WithChmod(mode fs.FileMode) Option {
	return func(o *WriteOptions) {
		o.Mode = mode
		o.Chmoded = true
	}
}

// Executable persists with 0755.
func Executable() Option { return WithChmod(ExecutableMode) }

// Secret persists with owner-only 0600.
func Secret() Option { return WithChmod(SecretMode) }

// ApplyOptions resolves options onto defaults.
func ApplyOptions(opts ...Option) WriteOptions {
	wo := WriteOptions{Mode: DefaultMode}
	for _, opt := range opts {
		opt(&wo)
	}
	return wo
}

// Handler turns artifacts into bytes. Keys are logical names and may be
// path-like ("initdb.d/000_db-initdb.sql"). Calls are ordered and blocking.
type Handler interface {
	Persist(ctx context.Context, key string, a *Artifact, opts ...Option) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, key string, a *Artifact, opts ...Option) error

func (f HandlerFunc) Persist(ctx context.Context, key string, a *Artifact, opts ...Option) error {
	return f(ctx, key, a, opts...)
}
