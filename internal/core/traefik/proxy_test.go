package traefik

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/compose"
	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// Test Helpers
// =============================================================================

type exposed struct {
	*giac.ServiceConfig
	Exposure
}

func newExposed(name string, port int, options *TargetOptions) *exposed {
	return &exposed{
		ServiceConfig: giac.NewTypicalServiceConfig(name, giac.ImageNamed("nginx")),
		Exposure: Exposure{
			Enabled: true,
			Options: options,
			Values:  PortValues(port),
		},
	}
}

func newContext() *giac.Context {
	return giac.NewContext("/tmp/appx", giac.Literal("appx"))
}

var (
	_ giac.Service = (*ReverseProxy)(nil)
	_ Target       = (*exposed)(nil)
)

// renderPorts resolves ports to docker port specs; Publish values are
// deferred and cannot be compared directly.
func renderPorts(cc *giac.Context, ports []giac.Port) []string {
	var out []string
	for _, p := range ports {
		switch p := p.(type) {
		case giac.ExposePort:
			out = append(out, giac.NumericText(cc, p.Target))
		case giac.PublishPort:
			spec := p.Published.Resolve(cc) + ":" + giac.NumericText(cc, p.Target)
			if p.Protocol != "" {
				spec += "/" + p.Protocol
			}
			out = append(out, spec)
		}
	}
	return out
}

// =============================================================================
// Configure Tests
// =============================================================================

func TestConfigure_RegistersProxy(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{})

	require.Len(t, cc.Registered(), 1)
	assert.Same(t, rp, cc.Registered()[0])
	assert.Equal(t, "reverse-proxy", rp.Name(cc))
	assert.Equal(t, giac.ImageNamed("traefik:2.2"), rp.Image)
	assert.True(t, rp.EngineListener)
	assert.Equal(t, []string{"80:80", "443:443", "8099:8080"}, renderPorts(cc, rp.Ports))
}

func TestConfigure_LabelsTargetsAtFinalize(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{})
	web := giac.Configured(cc, newExposed("web", 8080, nil))

	assert.Empty(t, web.Labels)

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Equal(t, true, web.Labels["traefik.enable"])
	assert.Equal(t, "Host(`web.docker.localhost`)", web.Labels["traefik.http.routers.web.rule"])
	assert.Equal(t, 8080, web.Labels["traefik.http.services.web.loadbalancer.server.port"])
}

func TestConfigure_TargetRegisteredBeforeProxy(t *testing.T) {
	cc := newContext()
	web := giac.Configured(cc, newExposed("web", 80, nil))
	Configure(cc, ProxyOptions{})

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Contains(t, web.Labels, "traefik.enable")
}

func TestConfigure_SkipsDisabledAndNonTargets(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{})
	off := giac.Configured(cc, newExposed("off", 80, nil))
	off.Exposure.Enabled = false
	plain := giac.Configured(cc, giac.NewTypicalServiceConfig("plain", giac.ImageNamed("busybox")))

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Empty(t, off.Labels)
	assert.Empty(t, plain.Labels)
}

func TestConfigure_DisabledOptionsFallBackToDefaults(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{})
	web := giac.Configured(cc, newExposed("web", 80, &TargetOptions{Enabled: false, CORS: true, PathPrefix: true}))

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Equal(t, "Host(`web.docker.localhost`)", web.Labels["traefik.http.routers.web.rule"])
	assert.NotContains(t, web.Labels, "traefik.http.routers.web.middlewares")
}

func TestConfigure_SecureFlagComesFromProxy(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{Secure: true})
	web := giac.Configured(cc, newExposed("web", 80, &TargetOptions{Enabled: true, ForwardAuth: true}))

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Equal(t, "https", web.Labels["traefik.http.routers.web.entrypoints"])
	assert.Equal(t,
		"https://${EP_EXECENV:-sandbox}.jwt-validator.${EP_BOUNDARY:-appx}.${EP_FQDNSUFFIX:-docker.localhost}/token",
		web.Labels["traefik.http.middlewares.web-auth.forwardauth.address"])
}

// =============================================================================
// Value Resolution Tests
// =============================================================================

func TestConfigure_ValueResolutionOrder(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{Values: Values{
		ServiceName: func(*giac.Context, giac.Service) string { return "from-proxy" },
		Host:        func(*giac.Context, giac.Service) string { return "proxy.example.com" },
		Port:        func(*giac.Context, giac.Service) int { return 9000 },
	}})
	own := giac.Configured(cc, newExposed("own", 8080, nil))
	own.Exposure.Values = Values{
		ServiceName: func(*giac.Context, giac.Service) string { return "from-target" },
	}

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Equal(t, "Host(`proxy.example.com`)", own.Labels["traefik.http.routers.from-target.rule"])
	assert.Equal(t, 9000, own.Labels["traefik.http.services.from-target.loadbalancer.server.port"])
}

func TestConfigure_DefaultValuesSupplier(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{Values: DefaultValuesSupplier(cc)})
	web := giac.Configured(cc, newExposed("web", 80, nil))

	_, err := cc.Finalize()
	require.NoError(t, err)

	assert.Equal(t,
		"Host(`${EP_EXECENV:-sandbox}.web.${EP_BOUNDARY:-appx}.${EP_FQDNSUFFIX:-docker.localhost}`)",
		web.Labels["traefik.http.routers.web.rule"])

	var names []string
	for _, p := range cc.EnvVars().Defaulted() {
		names = append(names, p.QualifiedName()+"="+p.DefaultText())
	}
	assert.Equal(t, []string{
		"EP_EXECENV=sandbox",
		"EP_BOUNDARY=appx",
		"EP_FQDNSUFFIX=docker.localhost",
	}, names)
}

// =============================================================================
// Proxy Service Tests
// =============================================================================

func TestReverseProxy_Insecure(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{})

	assert.False(t, rp.Secure())
	assert.Len(t, rp.Command, 7)
	assert.Equal(t, "--providers.docker", rp.Command[0].Resolve(cc))
	assert.Empty(t, rp.Volumes)
	assert.Empty(t, cc.EnvVars().Required())
}

func TestReverseProxy_Secure(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{Secure: true})

	require.Len(t, rp.Command, 13)
	assert.Equal(t, "--certificatesResolvers.default.acme.email=${LETSENCRYPT_SSL_EMAIL_ID}", rp.Command[8].Resolve(cc))

	required := cc.EnvVars().Required()
	require.Len(t, required, 1)
	assert.Equal(t, "LETSENCRYPT_SSL_EMAIL_ID", required[0].QualifiedName())

	require.Len(t, rp.Volumes, 1)
	acme, ok := rp.Volumes[0].(giac.LocalFsPathVolume)
	require.True(t, ok)
	assert.Equal(t, "/tmp/appx/acme.json", acme.LocalFsPath.Resolve(cc))
	assert.Equal(t, "/acme.json", acme.ContainerFsPath.Resolve(cc))
}

func TestReverseProxy_ExtraHosts(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{ExtraHosts: []string{"keycloak"}})

	require.Len(t, rp.ExtraHosts, 1)
	assert.Equal(t,
		"${EP_EXECENV:-sandbox}.keycloak.${EP_BOUNDARY:-appx}.${EP_FQDNSUFFIX:-docker.localhost}:${HOST_MACHINE_IP}",
		rp.ExtraHosts[0].Resolve(cc))

	_, ok := cc.EnvVars().Lookup("HOST_MACHINE_IP")
	assert.True(t, ok)
}

func TestReverseProxy_PersistRelatedArtifacts(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{Secure: true})

	var gotKey string
	var gotMode artifact.WriteOptions
	h := artifact.HandlerFunc(func(_ context.Context, key string, _ *artifact.Artifact, opts ...artifact.Option) error {
		gotKey = key
		gotMode = artifact.ApplyOptions(opts...)
		return nil
	})

	require.NoError(t, rp.PersistRelatedArtifacts(context.Background(), cc, h, nil))
	assert.Equal(t, "acme.json", gotKey)
	assert.Equal(t, artifact.SecretMode, gotMode.Mode)
}

func TestReverseProxy_PersistRelatedArtifactsError(t *testing.T) {
	cc := newContext()
	rp := Configure(cc, ProxyOptions{})
	boom := errors.New("disk full")

	h := artifact.HandlerFunc(func(context.Context, string, *artifact.Artifact, ...artifact.Option) error {
		return boom
	})

	err := rp.PersistRelatedArtifacts(context.Background(), cc, h, nil)
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// Compose Integration Tests
// =============================================================================

func TestReverseProxy_RendersInManifest(t *testing.T) {
	cc := newContext()
	Configure(cc, ProxyOptions{Secure: true})
	giac.Configured(cc, newExposed("web", 80, nil))

	services, err := cc.Finalize()
	require.NoError(t, err)
	doc, err := compose.NewOrchestrator().ToCompose(cc, services, nil)
	require.NoError(t, err)

	proxy := doc.Service("reverse-proxy")
	require.NotNil(t, proxy)
	assert.Equal(t, []string{"80:80", "443:443", "8099:8080"}, proxy.Ports)
	assert.Contains(t, proxy.Volumes, "/var/run/docker.sock:/var/run/docker.sock")
	assert.Contains(t, proxy.Volumes, "/tmp/appx/acme.json:/acme.json")

	web := doc.Service("web")
	require.NotNil(t, web)
	assert.Equal(t, "network", web.Labels["traefik.docker.network"])
}
