package project

import (
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"

	"github.com/artpar/giac/internal/catalog"
	"github.com/artpar/giac/internal/core/giac"
	"github.com/artpar/giac/internal/core/traefik"
)

// Service kinds.
const (
	KindPostgres     = "postgres"
	KindPostgREST    = "postgrest"
	KindSwagger      = "swagger"
	KindAdminer      = "adminer"
	KindPgAdmin      = "pgadmin"
	KindPortainer    = "portainer"
	KindRedis        = "redis"
	KindJWTValidator = "jwt-validator"
	KindImage        = "image"
)

// StackAutoBaaS selects the prebuilt PostgreSQL API stack.
const StackAutoBaaS = "autobaas"

// Built is the outcome of Build.
type Built struct {
	Services []giac.Service
	Stack    *catalog.AutoBaaS
	Proxy    *traefik.ReverseProxy
}

type builder func(b *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error)

var builders = map[string]builder{
	KindPostgres:     buildPostgres,
	KindPostgREST:    buildPostgREST,
	KindSwagger:      buildSwagger,
	KindAdminer:      simple(catalog.NewAdminer),
	KindPgAdmin:      simple(catalog.NewPgAdmin),
	KindPortainer:    simple(catalog.NewPortainer),
	KindRedis:        simple(catalog.NewRedis),
	KindJWTValidator: buildJWTValidator,
	KindImage:        buildImage,
}

type build struct {
	cc      *giac.Context
	project *Project
	byName  map[string]giac.Service
}

// Build registers the project's services in cc. The caller finalizes.
func (p *Project) Build(cc *giac.Context) (*Built, error) {
	out := &Built{}
	b := &build{cc: cc, project: p, byName: make(map[string]giac.Service)}

	if p.Stack == StackAutoBaaS {
		opts := catalog.StackOptions{Secure: p.secure()}
		if p.Postgres != nil {
			pg, err := p.Postgres.options()
			if err != nil {
				return nil, err
			}
			opts.Postgres = pg
		}
		out.Stack = catalog.NewAutoBaaS(cc, opts)
		out.Proxy = out.Stack.Proxy
		for _, s := range cc.Registered() {
			b.byName[s.Config().Name(cc)] = s
		}
		out.Services = append(out.Services, cc.Registered()...)
	}

	for i, spec := range p.Services {
		fn, ok := builders[spec.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: services[%d] kind %q", ErrUnknownKind, i, spec.Kind)
		}
		opts, err := b.serviceOptions(spec)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", spec.label(i), err)
		}
		s, err := fn(b, spec, opts)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", spec.label(i), err)
		}
		name := s.Config().Name(cc)
		if _, dup := b.byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		if t, ok := s.(traefik.Target); ok && spec.Routing != nil {
			applyRouting(t, spec.Routing)
		}
		cc.Register(s)
		b.byName[name] = s
		out.Services = append(out.Services, s)
	}

	if out.Proxy == nil && p.Proxy != nil && p.Proxy.Enabled {
		out.Proxy = traefik.Configure(cc, traefik.ProxyOptions{
			Secure:         p.Proxy.Secure,
			Values:         traefik.DefaultValuesSupplier(cc),
			ExtraHosts:     p.Proxy.ExtraHosts,
			ServiceOptions: []giac.ServiceOption{giac.WithDependsOn(out.Services...)},
		})
		out.Services = append(out.Services, out.Proxy)
	}
	return out, nil
}

func (p *Project) secure() bool {
	return p.Proxy != nil && p.Proxy.Secure
}

func (s ServiceSpec) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("services[%d] (%s)", i, s.Kind)
}

func (ps *PostgresSpec) options() (catalog.PostgresOptions, error) {
	opts := catalog.PostgresOptions{BaseImage: ps.BaseImage}
	for _, name := range ps.Extensions {
		ext, err := catalog.ParseExtension(name)
		if err != nil {
			return opts, err
		}
		opts.Extensions = append(opts.Extensions, ext)
	}
	return opts, nil
}

// serviceOptions turns the common fields into service options.
func (b *build) serviceOptions(spec ServiceSpec) ([]giac.ServiceOption, error) {
	var opts []giac.ServiceOption
	if spec.Name != "" {
		opts = append(opts, giac.WithServiceName(spec.Name))
	}
	if spec.Restart != "" {
		opts = append(opts, giac.WithRestart(giac.RestartPolicy(spec.Restart)))
	}
	if len(spec.Environment) > 0 {
		env := make(map[string]giac.Any, len(spec.Environment))
		for k, v := range spec.Environment {
			env[k] = giac.AnyOf(v)
		}
		opts = append(opts, giac.WithEnvironment(env))
	}
	if len(spec.Command) > 0 {
		opts = append(opts, giac.WithCommand(spec.Command...))
	}
	ports, err := parsePorts(spec.Ports)
	if err != nil {
		return nil, err
	}
	for _, e := range spec.Expose {
		ports = append(ports, giac.Expose(e))
	}
	if len(ports) > 0 {
		opts = append(opts, giac.WithPorts(ports...))
	}
	for _, dep := range spec.DependsOn {
		s, ok := b.byName[dep]
		if !ok {
			return nil, fmt.Errorf("%w: depends_on %q", ErrUnknownReference, dep)
		}
		opts = append(opts, giac.WithDependsOn(s))
	}
	return opts, nil
}

// parsePorts reads docker-style port specs ("8080:80", "53:53/udp",
// "9000-9001:9000-9001").
func parsePorts(specs []string) ([]giac.Port, error) {
	var ports []giac.Port
	for _, raw := range specs {
		mappings, err := nat.ParsePortSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", raw, err)
		}
		for _, m := range mappings {
			target := m.Port.Int()
			if m.Binding.HostPort == "" {
				ports = append(ports, giac.Expose(target))
				continue
			}
			published, err := strconv.Atoi(m.Binding.HostPort)
			if err != nil {
				return nil, fmt.Errorf("port %q: %w", raw, err)
			}
			p := giac.Publish(published, target)
			if proto := m.Port.Proto(); proto != "tcp" {
				p.Protocol = proto
			}
			ports = append(ports, p)
		}
	}
	return ports, nil
}

func applyRouting(t traefik.Target, routing *traefik.TargetOptions) {
	switch e := t.(type) {
	case *catalog.App:
		e.Options = routing
	case *catalog.JWTValidator:
		e.Options = routing
	case *imageService:
		e.Options = routing
	}
}

func simple[S giac.Service](fn func(...giac.ServiceOption) S) builder {
	return func(_ *build, _ ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
		return fn(opts...), nil
	}
}

func buildPostgres(b *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
	var pgOpts catalog.PostgresOptions
	if spec.Postgres != nil {
		var err error
		if pgOpts, err = spec.Postgres.options(); err != nil {
			return nil, err
		}
	}
	return catalog.NewPostgresEngine(b.cc, pgOpts, opts...), nil
}

func buildPostgREST(b *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
	pg, err := b.postgres(spec.Database)
	if err != nil {
		return nil, err
	}
	return catalog.NewPostgREST(pg, append([]giac.ServiceOption{giac.WithDependsOn(pg)}, opts...)...), nil
}

func buildSwagger(b *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
	apiURL := spec.APIURL
	if apiURL == "" {
		apiURL = catalog.SwaggerAPIURL(b.project.secure())
	}
	return catalog.NewSwaggerUI(apiURL, opts...), nil
}

func buildJWTValidator(b *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
	return catalog.NewJWTValidator(b.cc, spec.Repo, spec.Routing, opts...), nil
}

// postgres finds the engine named ref, or the only engine when ref is empty.
func (b *build) postgres(ref string) (*catalog.PostgresEngine, error) {
	if ref != "" {
		pg, ok := b.byName[ref].(*catalog.PostgresEngine)
		if !ok {
			return nil, fmt.Errorf("%w: database %q", ErrUnknownReference, ref)
		}
		return pg, nil
	}
	var found *catalog.PostgresEngine
	for _, s := range b.byName {
		if pg, ok := s.(*catalog.PostgresEngine); ok {
			if found != nil {
				return nil, fmt.Errorf("%w: database is ambiguous, name one", ErrUnknownReference)
			}
			found = pg
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no postgres service declared before it", ErrUnknownReference)
	}
	return found, nil
}

// =============================================================================
// Image Services
// =============================================================================

// imageService is an arbitrary image, proxied when routing is enabled.
type imageService struct {
	*giac.ServiceConfig
	traefik.Exposure
}

func buildImage(_ *build, spec ServiceSpec, opts []giac.ServiceOption) (giac.Service, error) {
	s := &imageService{
		ServiceConfig: giac.NewTypicalServiceConfig(spec.Name, giac.ImageNamed(spec.Image), opts...),
	}
	if spec.Routing != nil && spec.Routing.Enabled {
		s.Enabled = true
		if spec.ProxyPort > 0 {
			s.Values = traefik.PortValues(spec.ProxyPort)
		} else if port, ok := firstTarget(s.Ports); ok {
			s.Values = traefik.PortValues(port)
		}
	}
	return s, nil
}

func firstTarget(ports []giac.Port) (int, bool) {
	for _, p := range ports {
		switch p := p.(type) {
		case giac.ExposePort:
			return p.Target.Resolve(nil), true
		case giac.PublishPort:
			return p.Target.Resolve(nil), true
		}
	}
	return 0, false
}
