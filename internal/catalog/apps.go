package catalog

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/giac"
	"github.com/artpar/giac/internal/core/traefik"
)

// =============================================================================
// Proxied Applications
// =============================================================================

// App is a catalog service that may be routed by the reverse proxy.
type App struct {
	*giac.ServiceConfig
	traefik.Exposure
}

func newApp(name, image string, port int, svcOpts []giac.ServiceOption) *App {
	return &App{
		ServiceConfig: giac.NewTypicalServiceConfig(name, giac.ImageNamed(image), svcOpts...),
		Exposure: traefik.Exposure{
			Enabled: true,
			Values:  traefik.PortValues(port),
		},
	}
}

// NewPostgREST serves conn's schema as a REST API on port 3000.
func NewPostgREST(pg *PostgresEngine, svcOpts ...giac.ServiceOption) *App {
	app := newApp("postgREST", "postgrest/postgrest", 3000, svcOpts)
	app.SetEnv("PGRST_DB_URI", giac.Deferred(func(cc *giac.Context, _ ...any) any {
		return pg.Connection(cc).URL()
	}))
	app.SetEnv("PGRST_DB_SCHEMA", giac.Deferred(func(cc *giac.Context, _ ...any) any {
		return pg.Connection(cc).Schema
	}))
	app.SetEnv("PGRST_DB_ANON_ROLE", giac.Deferred(func(cc *giac.Context, _ ...any) any {
		return pg.Connection(cc).User
	}))
	return app
}

// NewSwaggerUI serves the OpenAPI document at apiURL under /doc/open-api.
func NewSwaggerUI(apiURL string, svcOpts ...giac.ServiceOption) *App {
	app := newApp("swagger-ui", "swaggerapi/swagger-ui", 8080, svcOpts)
	app.SetEnv("API_URL", giac.AnyOf(apiURL))
	app.SetEnv("BASE_URL", giac.AnyOf("/doc/open-api"))
	return app
}

// SwaggerAPIURL is the proxied /api endpoint Swagger UI reads from.
func SwaggerAPIURL(secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + traefik.ExecEnvPlaceholder + "." + traefik.BoundaryPlaceholder + "." +
		traefik.FQDNSuffixPlaceholder + "/api"
}

// NewAdminer is the Adminer database UI.
func NewAdminer(svcOpts ...giac.ServiceOption) *App {
	app := newApp("adminer-app", "adminer", 8080, svcOpts)
	app.SetEnv("ADMINER_DESIGN", giac.AnyOf("pepa-linha"))
	return app
}

// NewPgAdmin is the pgAdmin UI with development credentials.
func NewPgAdmin(svcOpts ...giac.ServiceOption) *App {
	app := newApp("pgAdmin", "dpage/pgadmin4", 80, svcOpts)
	app.SetEnv("PGADMIN_DEFAULT_EMAIL", giac.AnyOf("admin@docker.localhost"))
	app.SetEnv("PGADMIN_DEFAULT_PASSWORD", giac.AnyOf("devl"))
	return app
}

// NewPortainer is the Portainer container UI. It talks to the engine socket.
func NewPortainer(svcOpts ...giac.ServiceOption) *App {
	app := newApp("portainer", "portainer/portainer", 9000, svcOpts)
	app.EngineListener = true
	app.Command = []giac.Any{giac.AnyOf("-H"), giac.AnyOf("unix://" + giac.DockerSocketPath)}
	app.Ports = append(app.Ports, giac.PublishSame(9000), giac.PublishSame(8000))
	app.Volumes = append(app.Volumes, storageVolume(app.ServiceConfig, "/data"))
	return app
}

// NewRedis is a Redis server. It is not proxied.
func NewRedis(svcOpts ...giac.ServiceOption) *App {
	app := newApp("redis", "redis:alpine", 6379, svcOpts)
	app.Exposure.Enabled = false
	app.Volumes = append(app.Volumes, storageVolume(app.ServiceConfig, "/data"))
	return app
}

func storageVolume(sc *giac.ServiceConfig, containerPath string) giac.EngineStoreVolume {
	return giac.EngineStoreVolume{
		LocalVolName: giac.Deferred(func(cc *giac.Context, _ ...any) string {
			return sc.Name(cc) + "-storage"
		}),
		ContainerFsPath: giac.Literal(containerPath),
		Mutable: &giac.Mutable{
			ContentType:  "Recoverable container configuration",
			RecoveryType: giac.Reconstructible,
		},
	}
}

// =============================================================================
// JWT Validator
// =============================================================================

// JWTValidatorScript is written next to the manifest and mounted as the
// container command.
const JWTValidatorScript = "jwt-validator.sh"

// JWTValidator validates bearer tokens for forward-auth middlewares.
type JWTValidator struct {
	App
	RepoURL string
}

// NewJWTValidator checks tokens against GITLAB_JWKS_URI. repoURL is the
// validator source cloned at first start; when empty it is read from
// JWT_VALIDATOR_REPO at runtime.
func NewJWTValidator(cc *giac.Context, repoURL string, options *traefik.TargetOptions, svcOpts ...giac.ServiceOption) *JWTValidator {
	jv := &JWTValidator{App: *newApp("jwt-validator", "node:12", 3000, svcOpts), RepoURL: repoURL}
	jv.Options = options
	jv.Ports = append(jv.Ports, giac.Expose(3000))

	ev := cc.EnvVars()
	jwks := ev.RequiredEnvVar("GITLAB_JWKS_URI",
		"GitLab JSON Web Key Set URL endpoint, eg:- https://gitlab.com/oauth/discovery/keys", nil)
	jv.SetEnv("GITLAB_JWKS_URI", jwks.Any())
	if repoURL == "" {
		repo := ev.RequiredEnvVar("JWT_VALIDATOR_REPO", "Git URL of the JWT validator sources", nil)
		jv.SetEnv("JWT_VALIDATOR_REPO", repo.Any())
		jv.RepoURL = "$JWT_VALIDATOR_REPO"
	}

	jv.Volumes = append(jv.Volumes, giac.LocalFsPathVolume{
		LocalFsPath: giac.Deferred(func(cc *giac.Context, _ ...any) string {
			return filepath.Join(cc.ProjectPath(), JWTValidatorScript)
		}),
		ContainerFsPath: giac.Literal("/" + JWTValidatorScript),
	})
	jv.Command = []giac.Any{giac.AnyOf("/" + JWTValidatorScript)}
	return jv
}

// PersistRelatedArtifacts writes the executable start script.
func (jv *JWTValidator) PersistRelatedArtifacts(ctx context.Context, _ *giac.Context, h artifact.Handler, _ giac.ErrorReporter) error {
	script := artifact.New(artifact.Shell)
	script.AppendText(strings.Join([]string{
		"if [ ! -d /src ]; then",
		"git clone " + jv.RepoURL + " /src",
		"fi",
		"cd /src",
		`echo "JWKS_URI=${GITLAB_JWKS_URI}" > .env`,
		"npm install",
		"node server.js",
	}, "\n"))
	return h.Persist(ctx, JWTValidatorScript, script, artifact.Executable())
}
