package giac

import (
	"context"

	"github.com/artpar/giac/internal/core/artifact"
)

// =============================================================================
// Service Model
// =============================================================================

// RestartPolicy is the container restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// DefaultCommonNetworkName is the external network shared by an appliance.
const DefaultCommonNetworkName = "appliance"

// Network attaches a service to an external network. LocalName is how the
// service refers to it; ExternalName is the engine-level network.
type Network struct {
	LocalName    Text
	ExternalName Text
}

// ServiceConfig describes one deployable unit.
type ServiceConfig struct {
	ServiceName   Text
	ContainerName Text
	HostName      Text
	Image         Image
	Restart       RestartPolicy
	Environment   map[string]Any
	Ports         []Port
	Networks      []Network
	Volumes       []Volume
	Command       []Any
	DependsOn     []Service
	ExtraHosts    []Text
	Labels        map[string]any

	// EngineListener mounts the container engine socket into the service.
	EngineListener bool
}

// Config lets a bare *ServiceConfig act as a Service. Embedding types get
// it promoted.
func (sc *ServiceConfig) Config() *ServiceConfig {
	return sc
}

// ApplyLabel sets a label, replacing any previous value for key.
func (sc *ServiceConfig) ApplyLabel(key string, value any) {
	if sc.Labels == nil {
		sc.Labels = make(map[string]any)
	}
	sc.Labels[key] = value
}

// SetEnv sets an environment entry.
func (sc *ServiceConfig) SetEnv(name string, value Any) {
	if sc.Environment == nil {
		sc.Environment = make(map[string]Any)
	}
	sc.Environment[name] = value
}

// SetEnvText sets an environment entry from a Text.
func (sc *ServiceConfig) SetEnvText(name string, value Text) {
	sc.SetEnv(name, TextAny(value))
}

// Name resolves the service name with the config itself as extra argument.
func (sc *ServiceConfig) Name(cc *Context) string {
	return sc.ServiceName.Resolve(cc, sc)
}

// =============================================================================
// Service Capabilities
// =============================================================================

// Service is anything that carries a ServiceConfig.
type Service interface {
	Config() *ServiceConfig
}

// RelatedArtifactsPersister is implemented by services that write files of
// their own (init scripts, certificates) next to the manifest.
type RelatedArtifactsPersister interface {
	PersistRelatedArtifacts(ctx context.Context, cc *Context, h artifact.Handler, er ErrorReporter) error
}

// PeerArtifactsPersister is implemented by services that write files derived
// from another service. It is called once per ordered pair of distinct services.
type PeerArtifactsPersister interface {
	PersistPeerArtifacts(ctx context.Context, cc *Context, other Service, h artifact.Handler, er ErrorReporter) error
}

// =============================================================================
// Typical Defaults
// =============================================================================

// ServiceOption overrides a typical default.
type ServiceOption func(*ServiceConfig)

// WithServiceName overrides the service name.
func WithServiceName(name string) ServiceOption {
	return func(sc *ServiceConfig) { sc.ServiceName = Literal(name) }
}

// WithContainerName overrides the container name.
func WithContainerName(name Text) ServiceOption {
	return func(sc *ServiceConfig) { sc.ContainerName = name }
}

// WithHostName sets the host name.
func WithHostName(name Text) ServiceOption {
	return func(sc *ServiceConfig) { sc.HostName = name }
}

// WithRestart overrides the restart policy.
func WithRestart(policy RestartPolicy) ServiceOption {
	return func(sc *ServiceConfig) { sc.Restart = policy }
}

// WithNetworks replaces the default common network.
func WithNetworks(networks ...Network) ServiceOption {
	return func(sc *ServiceConfig) { sc.Networks = networks }
}

// WithDependsOn sets the services this one starts after.
func WithDependsOn(services ...Service) ServiceOption {
	return func(sc *ServiceConfig) { sc.DependsOn = append(sc.DependsOn, services...) }
}

// WithEnvironment merges environment entries.
func WithEnvironment(env map[string]Any) ServiceOption {
	return func(sc *ServiceConfig) {
		for k, v := range env {
			sc.SetEnv(k, v)
		}
	}
}

// WithExtraHosts appends extra host entries.
func WithExtraHosts(hosts ...Text) ServiceOption {
	return func(sc *ServiceConfig) { sc.ExtraHosts = append(sc.ExtraHosts, hosts...) }
}

// WithPorts appends ports.
func WithPorts(ports ...Port) ServiceOption {
	return func(sc *ServiceConfig) { sc.Ports = append(sc.Ports, ports...) }
}

// WithVolumes appends volumes.
func WithVolumes(volumes ...Volume) ServiceOption {
	return func(sc *ServiceConfig) { sc.Volumes = append(sc.Volumes, volumes...) }
}

// WithCommand sets the command.
func WithCommand(args ...string) ServiceOption {
	return func(sc *ServiceConfig) {
		sc.Command = sc.Command[:0]
		for _, a := range args {
			sc.Command = append(sc.Command, AnyOf(a))
		}
	}
}

// CommonNetwork is the network every typical service joins: local name
// "network" bound to the external network named after the context.
func CommonNetwork() Network {
	return Network{
		LocalName: Literal("network"),
		ExternalName: Deferred(func(cc *Context, _ ...any) string {
			return cc.ResolvedName()
		}),
	}
}

// ContainerName joins the context name and the service name.
//
// Example:
//
//	ContainerName("appx", "db") // returns "appx_db"
func ContainerName(contextName, serviceName string) string {
	return contextName + "_" + serviceName
}

// NewTypicalServiceConfig creates a ServiceConfig with the usual defaults:
// container name "<context>_<service>", restart always and the common network.
func NewTypicalServiceConfig(name string, image Image, opts ...ServiceOption) *ServiceConfig {
	sc := &ServiceConfig{
		ServiceName: Literal(name),
		Image:       image,
		Restart:     RestartAlways,
		Environment: make(map[string]Any),
		Labels:      make(map[string]any),
		Networks:    []Network{CommonNetwork()},
	}
	sc.ContainerName = Deferred(func(cc *Context, _ ...any) string {
		return ContainerName(cc.ResolvedName(), sc.ServiceName.Resolve(cc, sc))
	})
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}
