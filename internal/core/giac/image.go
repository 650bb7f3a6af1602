package giac

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// =============================================================================
// Images
// =============================================================================

// Image is either an ImageRef or a *Build.
type Image interface {
	image()
}

// ImageRef references a published image such as "postgres:13".
type ImageRef Text

func (ImageRef) image() {}

// Text returns the reference as a Text value.
func (r ImageRef) Text() Text { return Text(r) }

// ImageNamed is shorthand for a literal image reference.
func ImageNamed(ref string) ImageRef {
	return ImageRef(Literal(ref))
}

// Build describes an image built from generated instructions.
type Build struct {
	Dockerfile *Dockerfile
	Context    Text // build context; the orchestrator default applies when zero
	Tag        Text // image tag; derived from the container name when zero
	Args       map[string]Text
}

func (*Build) image() {}

// =============================================================================
// Dockerfiles
// =============================================================================

// Instructions renders the text of a Dockerfile.
type Instructions interface {
	Instructions(cc *Context, df *Dockerfile) string
}

// TextInstructions renders one instruction per line.
type TextInstructions []Text

func (ti TextInstructions) Instructions(cc *Context, df *Dockerfile) string {
	var b strings.Builder
	for _, line := range ti {
		b.WriteString(line.Resolve(cc, df))
		b.WriteString("\n")
	}
	return b.String()
}

// InstructionsFunc adapts a function to Instructions.
type InstructionsFunc func(cc *Context, df *Dockerfile) string

func (f InstructionsFunc) Instructions(cc *Context, df *Dockerfile) string {
	return f(cc, df)
}

// Dockerfile is a named set of build instructions persisted next to the
// compose manifest.
type Dockerfile struct {
	Name         Text
	Instructions Instructions
}

// NewDockerfile creates a Dockerfile with a literal name.
func NewDockerfile(name string, instructions Instructions) *Dockerfile {
	return &Dockerfile{Name: Literal(name), Instructions: instructions}
}

// Render resolves the instruction text and checks it parses as a Dockerfile.
func (df *Dockerfile) Render(cc *Context) (string, error) {
	text := df.Instructions.Instructions(cc, df)
	if _, err := parser.Parse(strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("dockerfile %s: %w", df.Name.Resolve(cc, df), err)
	}
	return text, nil
}

// Persist renders the Dockerfile and hands it to h under its resolved name.
func (df *Dockerfile) Persist(ctx context.Context, cc *Context, h artifact.Handler) error {
	text, err := df.Render(cc)
	if err != nil {
		return err
	}
	a := artifact.New(artifact.Dockerfile)
	a.AppendText(text)
	return h.Persist(ctx, df.Name.Resolve(cc, df), a)
}
