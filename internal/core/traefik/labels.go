package traefik

import (
	"fmt"

	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// Traefik Label Generation Functions
// =============================================================================

// Placeholder-based host fragments. They resolve at `docker compose up` time
// against the EP_* variables registered by DefaultValuesSupplier.
const (
	ExecEnvPlaceholder    = "${EP_EXECENV:-sandbox}"
	BoundaryPlaceholder   = "${EP_BOUNDARY:-appx}"
	FQDNSuffixPlaceholder = "${EP_FQDNSUFFIX:-docker.localhost}"
)

var (
	boundaryHost     = ExecEnvPlaceholder + "." + BoundaryPlaceholder + "." + FQDNSuffixPlaceholder
	boundaryHostRule = "Host(`" + boundaryHost + "`)"
)

// ProxyNetwork is the network name Traefik uses to reach targets.
const ProxyNetwork = "network"

// GenerateLabels derives the Traefik labels for one proxied service, in the
// order they are applied.
//
// Exactly one rule is selected from the routing toggles; see TargetOptions
// for precedence. Secure mode adds an HTTP to HTTPS redirect router and TLS
// on the https entrypoint; insecure mode routes on the default entrypoint
// and emits the loadbalancer port.
//
// Example (insecure, no toggles):
//
//	labels := GenerateLabels(LabelParams{RouterName: "adminer-app", Host: "a.docker.localhost", Port: 8080})
//	// traefik.http.routers.adminer-app.rule: Host(`a.docker.localhost`)
//	// traefik.enable: true
//	// traefik.http.services.adminer-app.loadbalancer.server.port: 8080
func GenerateLabels(params LabelParams) []Label {
	b := &labelBuilder{name: params.RouterName}
	o := params.Options

	if params.Secure {
		redirect := b.name + "-https-redirect"
		b.add("traefik.enable", true)
		b.add("traefik.docker.network", ProxyNetwork)
		b.add(router(redirect, "entrypoints"), "http")
		b.add(router(redirect, "rule"), "HostRegexp(`{any:.*}`)")
		b.add(router(redirect, "middlewares"), redirect)
		b.add(middleware(redirect, "redirectscheme.scheme"), "https")
		if params.Port != 0 {
			b.add(service(redirect, "loadbalancer.server.port"), params.Port)
		}
		b.add(router(b.name, "entrypoints"), "https")
		b.add(router(b.name, "tls.certresolver"), "default")
		b.rule(params)
	} else {
		b.rule(params)
		b.add("traefik.enable", true)
		if params.Port != 0 {
			b.add(service(b.name, "loadbalancer.server.port"), params.Port)
		}
	}

	switch {
	case o.CORS && o.ForwardAuth:
		b.add(router(b.name, "middlewares"), fmt.Sprintf("%s-cors, %s-auth", b.name, b.name))
		b.cors()
		b.forwardAuth(params.Secure)
	case o.CORS:
		b.add(router(b.name, "middlewares"), b.name+"-cors")
		b.cors()
	case o.ForwardAuth:
		b.add(router(b.name, "middlewares"), b.name+"-auth")
		b.forwardAuth(params.Secure)
	}

	if o.NonAuth {
		nonAuth := b.name + "NonAuth"
		b.add(router(nonAuth, "rule"),
			"Host(`"+ExecEnvPlaceholder+".postGraphile."+BoundaryPlaceholder+"."+FQDNSuffixPlaceholder+"`) && (Path(`/anonymousgraphql`))")
		b.add(router(nonAuth, "middlewares"), "replacepath-middleware")
		b.add(middleware("replacepath-middleware", "replacepath.path"), "/graphql")
	}

	return b.labels
}

// ApplyLabels writes labels onto sc in order; later keys replace earlier ones.
func ApplyLabels(sc *giac.ServiceConfig, labels []Label) {
	for _, l := range labels {
		sc.ApplyLabel(l.Key, l.Value)
	}
}

type labelBuilder struct {
	name   string
	labels []Label
}

func (b *labelBuilder) add(key string, value any) {
	b.labels = append(b.labels, Label{Key: key, Value: value})
}

func (b *labelBuilder) rule(params LabelParams) {
	o := params.Options
	switch {
	case o.ReplaceAuth:
		prefix, regex := "/api", "^/api(.*)"
		if o.ReplaceWithShield {
			prefix, regex = "/shield/api", "^/shield/api(.*)"
		}
		mw := "replacepath-middleware-" + b.name
		b.add(router(b.name, "rule"), boundaryHostRule+" && PathPrefix(`"+prefix+"`)")
		b.add(router(b.name, "middlewares"), mw)
		b.add(middleware(mw, "replacepathRegex.regex"), regex)
		b.add(middleware(mw, "replacepathRegex.replacement"), "$$1")
	case o.ShieldAuth:
		iface := b.name + "Interface"
		if params.Secure {
			b.add(router(iface, "tls.certresolver"), "default")
		}
		b.add(router(b.name, "rule"), boundaryHostRule+" && Path(`/shield/graphql`)")
		b.add(router(iface, "rule"), boundaryHostRule+" && Path(`/shield/graphiql`)")
	case o.NoServiceName:
		b.add(router(b.name, "rule"), boundaryHostRule)
	case o.CheckEmailExists:
		b.add(router(b.name, "rule"), "Host(`email.validation.infra."+FQDNSuffixPlaceholder+"`)")
	case o.PathPrefix:
		b.add(router(b.name, "rule"), boundaryHostRule+" && PathPrefix(`/doc/open-api`)")
	default:
		b.add(router(b.name, "rule"), fmt.Sprintf("Host(`%s`)", params.Host))
	}
}

func (b *labelBuilder) cors() {
	headers := "traefik.http.middlewares." + b.name + "-cors.headers.customresponseheaders."
	b.add(headers+"Access-Control-Allow-Headers", "*")
	b.add(headers+"Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	b.add(headers+"Access-Control-Allow-Origin", "*")
}

func (b *labelBuilder) forwardAuth(secure bool) {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	mw := b.name + "-auth"
	b.add(middleware(mw, "forwardauth.trustForwardHeader"), true)
	b.add(middleware(mw, "forwardauth.address"),
		scheme+"://"+ExecEnvPlaceholder+".jwt-validator."+BoundaryPlaceholder+"."+FQDNSuffixPlaceholder+"/token")
}

func router(name, key string) string {
	return "traefik.http.routers." + name + "." + key
}

func middleware(name, key string) string {
	return "traefik.http.middlewares." + name + "." + key
}

func service(name, key string) string {
	return "traefik.http.services." + name + "." + key
}
