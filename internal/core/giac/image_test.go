package giac

import (
	"context"
	"testing"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Dockerfile Tests
// =============================================================================

func TestDockerfile_Render(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	df := NewDockerfile("Dockerfile-db", TextInstructions{
		Literal("FROM postgres:13.2"),
		Deferred(func(cc *Context, _ ...any) string {
			return "LABEL appliance=" + cc.ResolvedName()
		}),
	})

	text, err := df.Render(cc)

	require.NoError(t, err)
	assert.Equal(t, "FROM postgres:13.2\nLABEL appliance=appx\n", text)
}

func TestDockerfile_RenderRejectsEmptyInstructions(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	df := NewDockerfile("Dockerfile-empty", TextInstructions{})

	_, err := df.Render(cc)

	assert.Error(t, err)
}

func TestDockerfile_Persist(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	df := NewDockerfile("Dockerfile-db", InstructionsFunc(func(*Context, *Dockerfile) string {
		return "FROM postgres:13.2\n"
	}))

	written := map[string]string{}
	h := artifact.HandlerFunc(func(_ context.Context, key string, a *artifact.Artifact, _ ...artifact.Option) error {
		written[key] = a.Text()
		return nil
	})

	err := df.Persist(context.Background(), cc, h)

	require.NoError(t, err)
	require.Contains(t, written, "Dockerfile-db")
	assert.Contains(t, written["Dockerfile-db"], "FROM postgres:13.2\n")
	assert.Contains(t, written["Dockerfile-db"], "DO NOT EDIT")
}

func TestImageVariants(t *testing.T) {
	cc := NewContext(".", Literal("appx"))
	var img Image = ImageNamed("nginx:latest")

	switch v := img.(type) {
	case ImageRef:
		assert.Equal(t, "nginx:latest", v.Text().Resolve(cc))
	default:
		t.Fatalf("unexpected image %T", img)
	}

	img = &Build{Dockerfile: NewDockerfile("Dockerfile", TextInstructions{Literal("FROM scratch")})}
	_, ok := img.(*Build)
	assert.True(t, ok)
}
