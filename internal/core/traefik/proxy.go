package traefik

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// Reverse Proxy Service
// =============================================================================

const (
	// ServiceName is the compose service name of the proxy.
	ServiceName = "reverse-proxy"

	// Image is the Traefik image the labels are written for.
	Image = "traefik:2.2"

	// AcmeStorage is the certificate store written next to the manifest.
	AcmeStorage = "acme.json"
)

// ProxyOptions configures the reverse proxy.
type ProxyOptions struct {
	// Secure enables HTTPS with ACME certificates and HTTP redirects.
	Secure bool

	// Values is consulted for targets that do not supply a value themselves.
	Values ValuesSupplier

	// ExtraHosts are component names resolved to the host machine from inside
	// the proxy container.
	ExtraHosts []string

	// ServiceOptions override the typical service defaults.
	ServiceOptions []giac.ServiceOption
}

// ReverseProxy is the Traefik service. It labels every enabled Target at
// Finalize.
type ReverseProxy struct {
	*giac.ServiceConfig

	secure bool
	values ValuesSupplier
}

// Configure creates the proxy, registers it and subscribes it to every
// Target registered in cc.
func Configure(cc *giac.Context, opts ProxyOptions) *ReverseProxy {
	rp := newReverseProxy(cc, opts)
	giac.Configured(cc, rp)
	cc.Subscribe(rp.label, IsTarget)
	return rp
}

func newReverseProxy(cc *giac.Context, opts ProxyOptions) *ReverseProxy {
	sc := giac.NewTypicalServiceConfig(ServiceName, giac.ImageNamed(Image), opts.ServiceOptions...)
	sc.EngineListener = true
	sc.Ports = append(sc.Ports,
		giac.PublishSame(80),
		giac.PublishSame(443),
		giac.Publish(8099, 8080),
	)

	if len(opts.ExtraHosts) > 0 {
		hostIP := cc.EnvVars().RequiredEnvVar("HOST_MACHINE_IP",
			"IP of host machine for using in traefik contianer as hosts entry.", nil)
		for _, c := range opts.ExtraHosts {
			sc.ExtraHosts = append(sc.ExtraHosts, giac.Literal(
				ExecEnvPlaceholder+"."+c+"."+BoundaryPlaceholder+"."+FQDNSuffixPlaceholder+":"+hostIP.Prepare()))
		}
	}

	if opts.Secure {
		email := cc.EnvVars().RequiredEnvVar("LETSENCRYPT_SSL_EMAIL_ID",
			"Email id for ACME Let's Encrypt certificates for https endpoints", nil)
		sc.Command = anyOf(
			"--providers.docker=true",
			"--providers.docker.endpoint=unix://"+giac.DockerSocketPath,
			"--providers.docker.exposedByDefault=false",
			"--api.dashboard=true",
			"--api.insecure=true",
			"--accesslog=true",
			"--entrypoints.http.address=:80",
			"--entrypoints.https.address=:443",
			"--certificatesResolvers.default.acme.email="+email.Prepare(),
			"--certificatesResolvers.default.acme.storage=/"+AcmeStorage,
			"--certificatesResolvers.default.acme.httpchallenge=true",
			"--certificatesresolvers.default.acme.httpchallenge.entrypoint=http",
			"--entryPoints.https.forwardedHeaders.insecure",
		)
		sc.Volumes = append(sc.Volumes, giac.LocalFsPathVolume{
			LocalFsPath: giac.Deferred(func(cc *giac.Context, _ ...any) string {
				return filepath.Join(cc.ProjectPath(), AcmeStorage)
			}),
			ContainerFsPath: giac.Literal("/" + AcmeStorage),
			Mutable: &giac.Mutable{
				ContentType:  "ACME certificates",
				RecoveryType: giac.Reconstructible,
			},
		})
	} else {
		sc.Command = anyOf(
			"--providers.docker",
			"--providers.docker.endpoint=unix://"+giac.DockerSocketPath,
			"--providers.docker.exposedByDefault=false",
			"--api.dashboard=true",
			"--api.insecure=true",
			"--entrypoints.http.address=:80",
			"--entryPoints.http.forwardedHeaders.insecure",
		)
	}

	return &ReverseProxy{ServiceConfig: sc, secure: opts.Secure, values: opts.Values}
}

// Secure reports whether the proxy terminates TLS.
func (rp *ReverseProxy) Secure() bool { return rp.secure }

// label is the Finalize handler for targets.
func (rp *ReverseProxy) label(cc *giac.Context, s giac.Service) {
	t, ok := s.(Target)
	if !ok || !t.ProxyEnabled() {
		return
	}

	var options TargetOptions
	if o := t.ProxyTargetOptions(); o != nil && o.Enabled {
		options = *o
	}
	name, host, port := resolve(cc, t, rp.values)

	labels := GenerateLabels(LabelParams{
		RouterName: name,
		Host:       host,
		Port:       port,
		Secure:     rp.secure,
		Options:    options,
	})
	ApplyLabels(t.Config(), labels)

	cc.Logger().Debug("proxy labels applied",
		"service", t.Config().Name(cc),
		"router", name,
		"labels", len(labels),
	)
}

// PersistRelatedArtifacts writes an empty ACME store readable only by its
// owner; Traefik refuses a world-readable one.
func (rp *ReverseProxy) PersistRelatedArtifacts(ctx context.Context, cc *giac.Context, h artifact.Handler, _ giac.ErrorReporter) error {
	if err := h.Persist(ctx, AcmeStorage, artifact.New(artifact.JSON), artifact.Secret()); err != nil {
		return fmt.Errorf("persist %s: %w", AcmeStorage, err)
	}
	return nil
}

func anyOf(args ...string) []giac.Any {
	out := make([]giac.Any, len(args))
	for i, a := range args {
		out[i] = giac.AnyOf(a)
	}
	return out
}
