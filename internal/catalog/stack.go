package catalog

import (
	"github.com/artpar/giac/internal/core/giac"
	"github.com/artpar/giac/internal/core/traefik"
)

// =============================================================================
// Stacks
// =============================================================================

// StackOptions configures AutoBaaS.
type StackOptions struct {
	Secure     bool
	Postgres   PostgresOptions
	JWTRepoURL string
}

// AutoBaaS is a PostgreSQL backed API stack: the engine, PostgREST with
// Swagger UI, Adminer, the JWT validator and the reverse proxy in front.
type AutoBaaS struct {
	Postgres     *PostgresEngine
	PostgREST    *App
	Swagger      *App
	Adminer      *App
	JWTValidator *JWTValidator
	Proxy        *traefik.ReverseProxy
}

// NewAutoBaaS registers the stack's services in cc. The caller finalizes.
func NewAutoBaaS(cc *giac.Context, opts StackOptions) *AutoBaaS {
	values := traefik.DefaultValuesSupplier(cc)

	s := &AutoBaaS{}
	s.Postgres = giac.Configured(cc, NewPostgresEngine(cc, opts.Postgres))
	afterDB := giac.WithDependsOn(s.Postgres)

	s.PostgREST = giac.Configured(cc, NewPostgREST(s.Postgres, afterDB))
	s.PostgREST.Options = &traefik.TargetOptions{Enabled: true, ReplaceAuth: true, CORS: true}

	s.Swagger = giac.Configured(cc, NewSwaggerUI(SwaggerAPIURL(opts.Secure), giac.WithDependsOn(s.PostgREST)))
	s.Swagger.Options = &traefik.TargetOptions{Enabled: true, PathPrefix: true}

	s.Adminer = giac.Configured(cc, NewAdminer(afterDB))

	s.JWTValidator = giac.Configured(cc, NewJWTValidator(cc, opts.JWTRepoURL, nil))

	s.Proxy = traefik.Configure(cc, traefik.ProxyOptions{
		Secure:     opts.Secure,
		Values:     values,
		ExtraHosts: []string{s.JWTValidator.Name(cc)},
		ServiceOptions: []giac.ServiceOption{giac.WithDependsOn(
			s.Postgres, s.PostgREST, s.Swagger, s.Adminer, s.JWTValidator,
		)},
	})
	return s
}
