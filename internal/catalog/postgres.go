package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/giac"
)

// =============================================================================
// PostgreSQL Engine
// =============================================================================

const (
	PostgresServiceName = "postgresqlengine"
	PostgresBaseImage   = "postgres:13.2"
	PostgresInitDBDir   = "initdb.d"
	PostgresPort        = 5432
)

// PostgresOptions selects the engine image. Without extensions the base
// image is used as is; otherwise a Dockerfile-<service> installing them is
// generated.
type PostgresOptions struct {
	BaseImage  string
	Extensions []Extension
}

// PostgresConn describes how other services reach the engine.
type PostgresConn struct {
	DBName   string
	User     string
	Password string
	Schema   string
	Host     string
	Port     string
}

// URL renders a libpq connection URL.
func (c PostgresConn) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.DBName)
}

// PostgresEngine is a PostgreSQL server with its own init script directory,
// initdb.d/<service>, mounted at /docker-entrypoint-initdb.d. Several engines
// in one project never share a generated file.
type PostgresEngine struct {
	*giac.ServiceConfig

	InitDB  giac.LocalFsPathVolume
	Options PostgresOptions

	db, user, password *giac.EnvVarPlaceholder
}

// NewPostgresEngine registers the POSTGRESQLENGINE_* variables and builds the
// engine service.
func NewPostgresEngine(cc *giac.Context, opts PostgresOptions, svcOpts ...giac.ServiceOption) *PostgresEngine {
	if opts.BaseImage == "" {
		opts.BaseImage = PostgresBaseImage
	}

	pg := &PostgresEngine{Options: opts}

	var image giac.Image = giac.ImageNamed(opts.BaseImage)
	if len(opts.Extensions) > 0 {
		image = &giac.Build{Dockerfile: &giac.Dockerfile{
			Name: giac.Deferred(func(cc *giac.Context, _ ...any) string {
				return "Dockerfile-" + pg.Name(cc)
			}),
			Instructions: extensionInstructions(opts),
		}}
	}
	pg.ServiceConfig = giac.NewTypicalServiceConfig(PostgresServiceName, image, svcOpts...)

	ev := cc.EnvVars()
	pg.db = ev.RequiredEnvVar("POSTGRESQLENGINE_DB", "Postgres database name", nil)
	pg.user = ev.RequiredEnvVar("POSTGRESQLENGINE_USER", "Postgres database user, default", nil)
	pg.password = ev.RequiredEnvVar("POSTGRESQLENGINE_PASSWORD", "Postgres user password", nil)
	pg.SetEnv("POSTGRES_DB", pg.db.Any())
	pg.SetEnv("POSTGRES_USER", pg.user.Any())
	pg.SetEnv("POSTGRES_PASSWORD", pg.password.Any())

	published := ev.DefaultEnvVar("PUBL_PORT", "PostgreSQL Engine published port", PostgresPort, pg)
	pg.Ports = append(pg.Ports, giac.PublishText(published.Text(), PostgresPort))

	pg.InitDB = giac.LocalFsPathVolume{
		LocalFsPath: giac.Deferred(func(cc *giac.Context, _ ...any) string {
			return filepath.Join(cc.ProjectPath(), PostgresInitDBDir, pg.Name(cc))
		}),
		ContainerFsPath: giac.Literal("/docker-entrypoint-initdb.d"),
	}
	pg.Volumes = append(pg.Volumes,
		giac.EngineStoreVolume{
			LocalVolName: giac.Deferred(func(cc *giac.Context, _ ...any) string {
				return pg.Name(cc) + "-storage"
			}),
			ContainerFsPath: giac.Literal("/var/lib/postgresql/data"),
			Mutable: &giac.Mutable{
				ContentType:  "Irrecoverable user generated and transactional content",
				RecoveryType: giac.Irrecoverable,
			},
		},
		pg.InitDB,
	)
	return pg
}

// Connection returns the in-network connection settings. Credentials stay
// runtime placeholders.
func (pg *PostgresEngine) Connection(cc *giac.Context) PostgresConn {
	return PostgresConn{
		DBName:   pg.db.Prepare(),
		User:     pg.user.Prepare(),
		Password: pg.password.Prepare(),
		Schema:   "public",
		Host:     pg.Name(cc),
		Port:     fmt.Sprint(PostgresPort),
	}
}

// initDBKey is the artifact key of a file inside the init directory,
// relative to the project.
func (pg *PostgresEngine) initDBKey(cc *giac.Context, file string) string {
	dir := pg.InitDB.LocalFsPath.Resolve(cc)
	if rel, err := filepath.Rel(cc.ProjectPath(), dir); err == nil {
		dir = rel
	}
	return filepath.ToSlash(filepath.Join(dir, file))
}

var initDBExtensions = []string{
	"pgcrypto",
	"plpgsql_check",
	"plpython3u",
	`"uuid-ossp"`,
}

var initPermissions = []string{
	"#!/bin/bash",
	"set -e\n",
	`echo "host replication $POSTGRES_USER 0.0.0.0/0 trust" >> $PGDATA/pg_hba.conf`,
	`echo "shared_preload_libraries = 'pg_stat_statements, pgaudit, pg_cron'" >> $PGDATA/postgresql.conf`,
	`echo "cron.database_name = '$POSTGRES_DB'" >> $PGDATA/postgresql.conf`,
	`echo "pg_stat_statements.max = 10000" >> $PGDATA/postgresql.conf`,
	`echo "pg_stat_statements.track = all" >> $PGDATA/postgresql.conf`,
	`echo "wal_level=logical" >> $PGDATA/postgresql.conf`,
	`echo "max_replication_slots=5" >> $PGDATA/postgresql.conf`,
	`echo "max_wal_senders=10" >> $PGDATA/postgresql.conf`,
	`echo "log_destination='csvlog'" >> $PGDATA/postgresql.conf`,
	`echo "logging_collector=on" >> $PGDATA/postgresql.conf`,
	`echo "log_filename='postgresql.log'" >> $PGDATA/postgresql.conf`,
	`echo "log_rotation_age=0" >> $PGDATA/postgresql.conf`,
	`echo "log_rotation_size=0" >> $PGDATA/postgresql.conf`,
}

// PersistRelatedArtifacts writes the extension bootstrap SQL and the
// permissions script into the init directory.
func (pg *PostgresEngine) PersistRelatedArtifacts(ctx context.Context, cc *giac.Context, h artifact.Handler, _ giac.ErrorReporter) error {
	sql := artifact.New(artifact.SQL)
	for _, ext := range initDBExtensions {
		sql.AppendText("CREATE EXTENSION IF NOT EXISTS " + ext + ";\n")
	}
	if err := h.Persist(ctx, pg.initDBKey(cc, "000_"+pg.Name(cc)+"-initdb.sql"), sql); err != nil {
		return err
	}

	script := artifact.New(artifact.Shell)
	script.AppendText(strings.Join(initPermissions, "\n"))
	return h.Persist(ctx, pg.initDBKey(cc, "init-permissions.sh"), script, artifact.Executable())
}
