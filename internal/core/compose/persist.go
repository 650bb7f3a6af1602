package compose

import (
	"context"
	"fmt"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/giac"
	"github.com/joho/godotenv"
)

// =============================================================================
// Persistence
// =============================================================================

// Preamble lists the mutable named volumes, then the required and defaulted
// environment variables, as comment lines for the manifest.
func (o *Orchestrator) Preamble(cc *giac.Context) []string {
	var lines []string
	for _, v := range o.volumes {
		if m := v.MutableContent(); m != nil {
			lines = append(lines, fmt.Sprintf("#   %s: %s", v.LocalVolName.Resolve(cc, v, o), m.ContentType))
		}
	}
	if len(lines) > 0 {
		lines = append([]string{"# Mutable volumes to be mindful of:"}, lines...)
	}

	var env []string
	for _, p := range cc.EnvVars().Required() {
		env = append(env, fmt.Sprintf("#   * %s - %s (required)", p.QualifiedName(), p.Purpose))
	}
	for _, p := range cc.EnvVars().Defaulted() {
		env = append(env, fmt.Sprintf("#   * %s - %s (default %s)", p.QualifiedName(), p.Purpose, p.DefaultText()))
	}
	if len(env) > 0 {
		lines = append(lines, "#", "# Environment variables allowed:")
		lines = append(lines, env...)
	}
	return append(lines, "")
}

// Persist compiles services and writes, in order: the manifest, every
// generated Dockerfile, the optional env sample, each service's related
// artifacts and the artifacts of every ordered pair of distinct services.
func (o *Orchestrator) Persist(ctx context.Context, cc *giac.Context, services *giac.Services, h artifact.Handler, er giac.ErrorReporter) error {
	doc, err := o.ToCompose(cc, services, er)
	if err != nil {
		return err
	}
	if o.finalizer != nil {
		doc = o.finalizer(cc, doc)
	}

	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", o.name, err)
	}
	manifest := artifact.NewWithPreamble(artifact.YAML, o.Preamble(cc)...)
	manifest.AppendText(string(body))
	if err := h.Persist(ctx, o.name, manifest); err != nil {
		return fmt.Errorf("persist %s: %w", o.name, err)
	}
	o.log(cc).Info("manifest persisted", "artifact", o.name, "services", len(doc.Services))

	for _, b := range o.builds {
		if err := b.Dockerfile.Persist(ctx, cc, h); err != nil {
			return err
		}
	}

	if o.envSample != "" {
		if err := o.persistEnvSample(ctx, cc, h); err != nil {
			return err
		}
	}

	return o.persistRelated(ctx, cc, services, h, er)
}

func (o *Orchestrator) persistRelated(ctx context.Context, cc *giac.Context, services *giac.Services, h artifact.Handler, er giac.ErrorReporter) error {
	if o.related != nil {
		result, err := o.related(ctx, cc, o, h, er)
		if err != nil {
			return err
		}
		if result == RelatedSkip {
			return nil
		}
	}

	all := services.All()
	for i, outer := range all {
		if p, ok := outer.(giac.RelatedArtifactsPersister); ok {
			if err := p.PersistRelatedArtifacts(ctx, cc, h, er); err != nil {
				return fmt.Errorf("related artifacts of %s: %w", outer.Config().Name(cc), err)
			}
		}
		peer, ok := outer.(giac.PeerArtifactsPersister)
		if !ok {
			continue
		}
		for j, inner := range all {
			if i == j {
				continue
			}
			if err := peer.PersistPeerArtifacts(ctx, cc, inner, h, er); err != nil {
				return fmt.Errorf("peer artifacts of %s: %w", outer.Config().Name(cc), err)
			}
		}
	}
	return nil
}

// EnvSample renders every registered placeholder in dotenv format: required
// variables empty, defaulted ones with their default.
func EnvSample(cc *giac.Context) (string, error) {
	env := make(map[string]string)
	for _, p := range cc.EnvVars().All() {
		env[p.QualifiedName()] = p.DefaultText()
	}
	return godotenv.Marshal(env)
}

func (o *Orchestrator) persistEnvSample(ctx context.Context, cc *giac.Context, h artifact.Handler) error {
	text, err := EnvSample(cc)
	if err != nil {
		return fmt.Errorf("render %s: %w", o.envSample, err)
	}
	a := artifact.New(artifact.Env)
	a.AppendText(text + "\n")
	return h.Persist(ctx, o.envSample, a, artifact.Secret())
}
