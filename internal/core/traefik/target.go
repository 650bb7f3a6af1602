package traefik

import (
	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// Proxy Targets
// =============================================================================

// Target is a service that opts into proxy routing.
type Target interface {
	giac.Service

	// ProxyEnabled gates label generation for the service.
	ProxyEnabled() bool

	// ProxyTargetOptions returns nil when the service has no toggles.
	ProxyTargetOptions() *TargetOptions

	// ProxyTargetValues returns nil to fall back to the proxy's supplier.
	ProxyTargetValues() ValuesSupplier
}

// Exposure implements the Target methods; embed it next to a
// *giac.ServiceConfig.
type Exposure struct {
	Enabled bool
	Options *TargetOptions
	Values  ValuesSupplier
}

func (e *Exposure) ProxyEnabled() bool                 { return e.Enabled }
func (e *Exposure) ProxyTargetOptions() *TargetOptions { return e.Options }
func (e *Exposure) ProxyTargetValues() ValuesSupplier  { return e.Values }

// IsTarget selects services implementing Target.
func IsTarget(s giac.Service) bool {
	_, ok := s.(Target)
	return ok
}

// =============================================================================
// Values Suppliers
// =============================================================================

// ValuesSupplier overrides the proxied service name, host and port. A false
// second result defers to the next supplier.
type ValuesSupplier interface {
	ProxiedServiceName(cc *giac.Context, s giac.Service) (string, bool)
	ProxiedHost(cc *giac.Context, s giac.Service) (string, bool)
	ProxiedPort(cc *giac.Context, s giac.Service) (int, bool)
}

// Values is a ValuesSupplier built from optional functions.
type Values struct {
	ServiceName func(cc *giac.Context, s giac.Service) string
	Host        func(cc *giac.Context, s giac.Service) string
	Port        func(cc *giac.Context, s giac.Service) int
}

func (v Values) ProxiedServiceName(cc *giac.Context, s giac.Service) (string, bool) {
	if v.ServiceName == nil {
		return "", false
	}
	return v.ServiceName(cc, s), true
}

func (v Values) ProxiedHost(cc *giac.Context, s giac.Service) (string, bool) {
	if v.Host == nil {
		return "", false
	}
	return v.Host(cc, s), true
}

func (v Values) ProxiedPort(cc *giac.Context, s giac.Service) (int, bool) {
	if v.Port == nil {
		return 0, false
	}
	return v.Port(cc, s), true
}

// PortValues supplies only a fixed port.
func PortValues(port int) Values {
	return Values{Port: func(*giac.Context, giac.Service) int { return port }}
}

// DefaultValuesSupplier registers the EP_* placeholders and builds hosts as
// "${EP_EXECENV:-sandbox}.<service>.${EP_BOUNDARY:-appx}.${EP_FQDNSUFFIX:-docker.localhost}".
func DefaultValuesSupplier(cc *giac.Context) Values {
	ev := cc.EnvVars()
	execEnv := ev.DefaultEnvVar("EP_EXECENV", "Endpoints' execution environment name like sandbox, devl, test, demo, or prod", "sandbox", nil)
	boundary := ev.DefaultEnvVar("EP_BOUNDARY", "Endpoints' name of application or service", "appx", nil)
	suffix := ev.DefaultEnvVar("EP_FQDNSUFFIX", "Endpoints' fully qualified domain name suffix", "docker.localhost", nil)

	return Values{
		Host: func(cc *giac.Context, s giac.Service) string {
			return execEnv.Prepare() + "." + s.Config().Name(cc) + "." +
				boundary.Prepare() + "." + suffix.Prepare()
		},
	}
}

// resolve picks each value from the target's supplier, then the proxy's,
// then the defaults.
func resolve(cc *giac.Context, t Target, fallback ValuesSupplier) (name, host string, port int) {
	suppliers := make([]ValuesSupplier, 0, 2)
	if v := t.ProxyTargetValues(); v != nil {
		suppliers = append(suppliers, v)
	}
	if fallback != nil {
		suppliers = append(suppliers, fallback)
	}

	name = t.Config().Name(cc)
	for _, sup := range suppliers {
		if v, ok := sup.ProxiedServiceName(cc, t); ok {
			name = v
			break
		}
	}

	host = name + ".docker.localhost"
	for _, sup := range suppliers {
		if v, ok := sup.ProxiedHost(cc, t); ok {
			host = v
			break
		}
	}

	for _, sup := range suppliers {
		if v, ok := sup.ProxiedPort(cc, t); ok {
			port = v
			break
		}
	}
	return name, host, port
}
