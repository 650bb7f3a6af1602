package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/giac/internal/core/giac"
)

// Extension is an optional PostgreSQL extension baked into the engine image.
type Extension string

const (
	ExtPlPgSQLCheck Extension = "plpgsql_check"
	ExtPostGIS      Extension = "postgis"
	ExtPgTAP        Extension = "pgtap"
	ExtPlPython3    Extension = "plpython3"
	ExtPLSH         Extension = "plsh"
	ExtPLPerl       Extension = "plperl"
	ExtPgAudit      Extension = "pgaudit"
	ExtMessageDB    Extension = "message-db"
	ExtPgsqlHTTP    Extension = "pgsql-http"
	ExtPgCron       Extension = "pg_cron"
	ExtPgSemver     Extension = "pg-semver"
)

// AllExtensions lists every extension in the order its instructions are
// emitted.
var AllExtensions = []Extension{
	ExtPostGIS,
	ExtPgTAP,
	ExtPlPython3,
	ExtPLSH,
	ExtPLPerl,
	ExtPgAudit,
	ExtPlPgSQLCheck,
	ExtMessageDB,
	ExtPgsqlHTTP,
	ExtPgCron,
	ExtPgSemver,
}

var extensionBlocks = map[Extension][]string{
	ExtPostGIS: {
		"# Install postgis",
		"ENV POSTGIS_MAJOR 3",
		"ENV POSTGIS_VERSION 3.0.0+dfsg-2~exp1.pgdg100+1",
		`RUN apt-get update \`,
		`      && apt-cache showpkg postgresql-$PG_MAJOR-postgis-$POSTGIS_MAJOR \`,
		`      && apt-get install -y --no-install-recommends \`,
		`           postgresql-$PG_MAJOR-postgis-$POSTGIS_MAJOR \`,
		`           postgresql-$PG_MAJOR-postgis-$POSTGIS_MAJOR-scripts \`,
		`      && apt-get install software-properties-common -y \`,
		`      && apt-get install git -y \`,
		`      && apt-get install build-essential -y \`,
		"      && rm -rf /var/lib/apt/lists/*",
	},
	ExtPgTAP: {
		"# Install pgtap",
		"ENV PGTAP_VERSION v1.1.0",
		`RUN git clone https://github.com/theory/pgtap.git \`,
		`    && cd pgtap && git checkout tags/$PGTAP_VERSION \`,
		"    && make install",
	},
	ExtPlPython3: {
		"# Install plpython3",
		`RUN apt-get update \`,
		"      && apt-get install -y postgresql-contrib postgresql-plpython3-13",
	},
	ExtPLSH: {
		"# Install PL/SH",
		"RUN apt install -y postgresql-13-plsh",
	},
	ExtPLPerl: {
		"# Install PL/PERL",
		"RUN apt install -y postgresql-plperl-13",
	},
	ExtPgAudit: {
		"# Install pgAudit",
		"ENV PGAUDIT_VERSION 1.5.0",
		`RUN pgAuditDependencies="postgresql-server-dev-$PG_MAJOR \`,
		`    libssl-dev \`,
		`    libkrb5-dev \`,
		`    git-core \`,
		`    wget" \`,
		`    && apt-get update \`,
		`    && apt-get install -y --no-install-recommends ${pgAuditDependencies} \`,
		`    && cd /tmp \`,
		`    && wget https://github.com/pgaudit/pgaudit/archive/${PGAUDIT_VERSION}.tar.gz \`,
		`    && tar -zxf ${PGAUDIT_VERSION}.tar.gz \`,
		`    && cd pgaudit-${PGAUDIT_VERSION} \`,
		"    && make install USE_PGXS=1",
	},
	ExtPlPgSQLCheck: {
		"# Install plpgsql_check",
		`RUN apt-get update \`,
		`    && apt-get install -y gcc make libicu-dev postgresql-server-dev-13 \`,
		`    && cd /tmp \`,
		`    && git clone https://github.com/okbob/plpgsql_check.git \`,
		`    && cd plpgsql_check \`,
		`    && make clean \`,
		"    && make install",
	},
	ExtMessageDB: {
		"# Clone Message DB",
		`RUN cd /usr/src/ \`,
		"  && git clone https://github.com/message-db/message-db.git",
		"WORKDIR /usr/src/message-db",
	},
	ExtPgsqlHTTP: {
		"# Install pgsql-http",
		`RUN apt-get update \`,
		`    && apt-get install -y libcurl4-openssl-dev build-essential \`,
		`    && cd /tmp \`,
		`    && git clone https://github.com/pramsey/pgsql-http.git \`,
		`    && cd pgsql-http \`,
		`    && make clean \`,
		"    && make install",
	},
	ExtPgCron: {
		"# Install pg_cron",
		"RUN apt-get -y install postgresql-13-cron",
	},
	ExtPgSemver: {
		"# Install pg-semver",
		`RUN cd /tmp && git clone https://github.com/theory/pg-semver.git \`,
		`    && cd pg-semver \`,
		`    && make \`,
		"    && make install",
	},
}

// ParseExtension validates an extension name.
func ParseExtension(name string) (Extension, error) {
	ext := Extension(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := extensionBlocks[ext]; !ok {
		return "", fmt.Errorf("%w: postgres extension %q", giac.ErrUnsupportedConfiguration, name)
	}
	return ext, nil
}

// extensionInstructions renders FROM <base> followed by one block per
// selected extension in AllExtensions order.
func extensionInstructions(opts PostgresOptions) giac.Instructions {
	return giac.InstructionsFunc(func(*giac.Context, *giac.Dockerfile) string {
		var b strings.Builder
		b.WriteString("FROM " + opts.BaseImage + "\n\n")
		for _, ext := range AllExtensions {
			if !slices.Contains(opts.Extensions, ext) {
				continue
			}
			b.WriteString(strings.Join(extensionBlocks[ext], "\n"))
			b.WriteString("\n\n")
		}
		return b.String()
	})
}
