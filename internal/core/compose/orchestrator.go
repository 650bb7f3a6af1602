package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// Engine Versions
// =============================================================================

// EngineVersion ties an engine release to the compose file format it reads.
type EngineVersion struct {
	Release           string
	ComposeFileFormat string
}

// LatestEngine is the default target.
var LatestEngine = EngineVersion{Release: "latest", ComposeFileFormat: "3.3"}

// DefaultManifestName is the artifact key of the manifest.
const DefaultManifestName = "docker-compose.yaml"

// =============================================================================
// Options
// =============================================================================

// RelatedResult tells Persist whether to run the per-service related
// artifact pass after a RelatedPersister.
type RelatedResult int

const (
	RelatedPersist RelatedResult = iota
	RelatedSkip
)

// RelatedPersister replaces or precedes the related artifact pass.
type RelatedPersister func(ctx context.Context, cc *giac.Context, o *Orchestrator, h artifact.Handler, er giac.ErrorReporter) (RelatedResult, error)

// PrePersistFinalizer may rewrite the document right before it is persisted.
type PrePersistFinalizer func(cc *giac.Context, doc *Document) *Document

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithName sets the manifest artifact key.
func WithName(name string) Option {
	return func(o *Orchestrator) { o.name = name }
}

// WithBuildContext sets the build context of generated images. The value is
// resolved with the Dockerfile name and the Build as extra arguments.
func WithBuildContext(bc giac.Text) Option {
	return func(o *Orchestrator) { o.buildContext = bc }
}

// WithEngineVersion selects the compose file format.
func WithEngineVersion(v EngineVersion) Option {
	return func(o *Orchestrator) { o.engine = v }
}

// WithPrePersistFinalizer installs a document rewrite hook.
func WithPrePersistFinalizer(fn PrePersistFinalizer) Option {
	return func(o *Orchestrator) { o.finalizer = fn }
}

// WithRelatedPersister installs a related artifact hook.
func WithRelatedPersister(fn RelatedPersister) Option {
	return func(o *Orchestrator) { o.related = fn }
}

// WithEnvSample also persists a dotenv sample of every registered
// placeholder under key.
func WithEnvSample(key string) Option {
	return func(o *Orchestrator) { o.envSample = key }
}

// WithLogger sets the logger; the context logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator compiles a finalized service set into a Document in two
// passes: collect builds, networks and named volumes, then emit every
// service in registration order.
type Orchestrator struct {
	name         string
	buildContext giac.Text
	engine       EngineVersion
	finalizer    PrePersistFinalizer
	related      RelatedPersister
	envSample    string
	logger       *slog.Logger

	builds   []*giac.Build
	networks []giac.Network
	volumes  []giac.EngineStoreVolume
}

// NewOrchestrator creates an orchestrator with the given options.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		name:   DefaultManifestName,
		engine: LatestEngine,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name is the manifest artifact key.
func (o *Orchestrator) Name() string { return o.name }

// Builds returns the builds collected by the last ToCompose.
func (o *Orchestrator) Builds() []*giac.Build {
	return append([]*giac.Build(nil), o.builds...)
}

// Volumes returns the named volumes collected by the last ToCompose.
func (o *Orchestrator) Volumes() []giac.EngineStoreVolume {
	return append([]giac.EngineStoreVolume(nil), o.volumes...)
}

func (o *Orchestrator) log(cc *giac.Context) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return cc.Logger()
}

// collect is pass one.
func (o *Orchestrator) collect(cc *giac.Context, services *giac.Services) {
	o.builds = nil
	o.networks = nil
	o.volumes = nil

	services.ForEach(func(s giac.Service) {
		sc := s.Config()
		if b, ok := sc.Image.(*giac.Build); ok {
			o.builds = append(o.builds, b)
		}
		o.networks = append(o.networks, sc.Networks...)
		for _, v := range sc.Volumes {
			esv, ok := v.(giac.EngineStoreVolume)
			if !ok {
				continue
			}
			if esv.EngineVolName.IsZero() {
				esv.EngineVolName = giac.Literal(cc.Name().Resolve(cc, o))
			}
			o.volumes = append(o.volumes, esv)
		}
	})
}

// ToCompose compiles services into a Document. Unknown volume variants are
// reported through er and skipped; unsupported configurations and invariant
// violations abort with an error.
func (o *Orchestrator) ToCompose(cc *giac.Context, services *giac.Services, er giac.ErrorReporter) (*Document, error) {
	o.collect(cc, services)

	doc := &Document{Version: o.engine.ComposeFileFormat}
	var err error
	services.ForEach(func(s giac.Service) {
		if err != nil {
			return
		}
		sc := s.Config()
		name := sc.ServiceName.Resolve(cc, sc, o)
		if name == "" {
			err = giac.NewConfigError("", "service_name", "service name resolved to an empty string", giac.ErrEmptyServiceName)
			return
		}

		var svc *ServiceDoc
		svc, err = o.toService(cc, name, sc, er)
		if err != nil {
			return
		}
		doc.setService(name, svc)
		o.log(cc).Debug("service compiled", "service", name)
	})
	if err != nil {
		return nil, err
	}

	for _, n := range o.networks {
		local := n.LocalName.Resolve(cc, n, o)
		if doc.Networks == nil {
			doc.Networks = make(map[string]NetworkDoc)
		}
		if _, ok := doc.Networks[local]; !ok {
			doc.Networks[local] = NetworkDoc{External: ExternalDoc{Name: n.ExternalName.Resolve(cc, n, o)}}
		}
	}
	for _, v := range o.volumes {
		local := v.LocalVolName.Resolve(cc, v, o)
		if doc.Volumes == nil {
			doc.Volumes = make(map[string]VolumeDoc)
		}
		doc.Volumes[local] = VolumeDoc{}
	}

	return doc, nil
}

// toService is pass two for a single service.
func (o *Orchestrator) toService(cc *giac.Context, name string, sc *giac.ServiceConfig, er giac.ErrorReporter) (*ServiceDoc, error) {
	svc := &ServiceDoc{}

	if !sc.ContainerName.IsZero() {
		svc.ContainerName = sc.ContainerName.Resolve(cc, sc, o)
	}
	if !sc.HostName.IsZero() {
		svc.Hostname = sc.HostName.Resolve(cc, sc, o)
	}
	if err := o.toImage(cc, name, sc, svc); err != nil {
		return nil, err
	}
	if sc.Restart != "" {
		svc.Restart = string(sc.Restart)
	}
	if err := o.toPorts(cc, name, sc, svc); err != nil {
		return nil, err
	}
	for _, dep := range sc.DependsOn {
		svc.DependsOn = append(svc.DependsOn, dep.Config().ServiceName.Resolve(cc, sc, o))
	}
	svc.Environment = o.toEnvironment(cc, sc)
	svc.Volumes = o.toVolumes(cc, name, sc, er)
	for _, h := range sc.ExtraHosts {
		svc.ExtraHosts = append(svc.ExtraHosts, h.Resolve(cc, sc, o))
	}
	for _, n := range sc.Networks {
		svc.Networks = append(svc.Networks, n.LocalName.Resolve(cc, sc, o))
	}
	for _, c := range sc.Command {
		svc.Command = append(svc.Command, stringify(c.Resolve(cc, sc, o)))
	}
	if len(sc.Labels) > 0 {
		svc.Labels = make(map[string]any, len(sc.Labels))
		for k, v := range sc.Labels {
			svc.Labels[k] = v
		}
	}
	return svc, nil
}

func (o *Orchestrator) toImage(cc *giac.Context, name string, sc *giac.ServiceConfig, svc *ServiceDoc) error {
	switch img := sc.Image.(type) {
	case *giac.Build:
		dockerfile := img.Dockerfile.Name.Resolve(cc, img)
		bc := img.Context
		if bc.IsZero() {
			bc = o.buildContext
		}
		buildContext := bc.Resolve(cc, dockerfile, img)
		if bc.IsZero() {
			buildContext = cc.ProjectPath()
		}
		svc.Build = &BuildDoc{Context: buildContext, Dockerfile: dockerfile}
		for k, v := range img.Args {
			if svc.Build.Args == nil {
				svc.Build.Args = make(map[string]string, len(img.Args))
			}
			svc.Build.Args[k] = v.Resolve(cc, sc, o)
		}

		if !img.Tag.IsZero() {
			svc.Image = strings.ToLower(img.Tag.Resolve(cc, sc, o))
			return nil
		}
		if sc.ContainerName.IsZero() {
			return giac.NewConfigError(name, "container_name", "build images are tagged after the container name, which is not set", giac.ErrInvariant)
		}
		// engines require lower-case image names
		svc.Image = strings.ToLower(sc.ContainerName.Resolve(cc, sc, o) + ":latest")
	case giac.ImageRef:
		svc.Image = img.Text().Resolve(cc, sc)
	case nil:
		return giac.NewConfigError(name, "image", "service has no image", ErrServiceNoImage)
	default:
		return giac.NewConfigError(name, "image", fmt.Sprintf("image variant %T", img), giac.ErrUnsupportedConfiguration)
	}
	return nil
}
