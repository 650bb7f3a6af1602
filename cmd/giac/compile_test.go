package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/giac/internal/shell/store"
)

const simpleProject = `
name: demo
proxy:
  enabled: true
services:
  - kind: redis
  - kind: image
    name: web
    image: nginx:alpine
    expose: [80]
    depends_on: [redis]
    routing:
      enabled: true
`

const stackProject = `
name = "shop"
stack = "autobaas"
`

const stackEnv = `POSTGRESQLENGINE_DB=app
POSTGRESQLENGINE_USER=app
POSTGRESQLENGINE_PASSWORD=secret
GITLAB_JWKS_URI=https://gitlab.example.com/oauth/discovery/keys
JWT_VALIDATOR_REPO=https://git.example.com/jwt.git
HOST_MACHINE_IP=10.0.0.1
LETSENCRYPT_SSL_EMAIL_ID=ops@example.com
`

// =============================================================================
// Test Helpers
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cErr *CommandError
	if errors.As(err, &cErr) {
		return cErr.ExitCode
	}
	return -1
}

// =============================================================================
// Compile Tests
// =============================================================================

func TestCompile_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.yaml", simpleProject)

	out, err := execute(t, "compile", file)
	require.NoError(t, err)

	manifest, err := os.ReadFile(filepath.Join(dir, "docker-compose.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "container_name: demo_web")
	assert.Contains(t, string(manifest), "traefik.http.services.web.loadbalancer.server.port: 80")
	assert.FileExists(t, filepath.Join(dir, ".env.sample"))
	assert.FileExists(t, filepath.Join(dir, "acme.json"))
	assert.Contains(t, out, filepath.Join(dir, "docker-compose.yaml"))
}

func TestCompile_OutputAndManifestFlags(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	file := writeFile(t, dir, "giac.yaml", simpleProject)

	_, err := execute(t, "compile", file, "-o", dest, "--manifest", "compose.yml", "--env-sample", "")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "compose.yml"))
	assert.NoFileExists(t, filepath.Join(dest, ".env.sample"))
	assert.NoFileExists(t, filepath.Join(dir, "docker-compose.yaml"))
}

func TestCompile_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.yaml", simpleProject)

	out, err := execute(t, "compile", file, "--dry-run")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "docker-compose.yaml"))
	assert.Contains(t, out, "docker-compose.yaml")
}

func TestCompile_StackWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.toml", stackProject)
	envFile := writeFile(t, dir, "runtime.env", stackEnv)

	_, err := execute(t, "compile", file, "--strict", "--env-file", envFile, "--secure")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "initdb.d", "postgresqlengine", "init-permissions.sh"))
	info, err := os.Stat(filepath.Join(dir, "acme.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	manifest, err := os.ReadFile(filepath.Join(dir, "docker-compose.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "--certificatesResolvers.default.acme.email=${LETSENCRYPT_SSL_EMAIL_ID}")
}

func TestCompile_StrictFailsOnMissingEnv(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.toml", stackProject)

	_, err := execute(t, "compile", file, "--strict")
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissingEnv)
	assert.Equal(t, ExitConfigError, exitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "docker-compose.yaml"))
}

func TestCompile_ProjectErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "compile", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ExitProjectError, exitCode(err))

	bad := writeFile(t, dir, "bad.yaml", "name: x\nservices: [{kind: mongo}]\n")
	_, err = execute(t, "compile", bad)
	assert.Equal(t, ExitProjectError, exitCode(err))
}

func TestCompile_RecordsRunInLedger(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.yaml", simpleProject)
	dsn := filepath.Join(dir, "state", "ledger.db")

	out, err := execute(t, "compile", file, "--ledger", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "recorded")

	s, err := store.NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunSucceeded, runs[0].Status)
	assert.Equal(t, "demo", runs[0].ContextName)
	assert.Equal(t, 3, runs[0].Services)
	require.NotNil(t, runs[0].FinishedAt)

	recs, err := s.ListArtifacts(context.Background(), runs[0].ID)
	require.NoError(t, err)
	var keys []string
	for _, r := range recs {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"docker-compose.yaml", ".env.sample", "acme.json"}, keys)

	out, err = execute(t, "runs", "--ledger", dsn, runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)
	assert.Contains(t, out, "acme.json")
}

func TestRuns_RequiresLedger(t *testing.T) {
	_, err := execute(t, "runs")
	assert.ErrorIs(t, err, errNoLedger)
}

// =============================================================================
// Env and Version Tests
// =============================================================================

func TestEnv_ListsVariables(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "giac.toml", stackProject)

	out, err := execute(t, "env", file)
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "POSTGRESQLENGINE_PASSWORD")
	assert.Contains(t, out, "(required)")
	assert.Contains(t, out, "EP_EXECENV")
	assert.NotContains(t, out, "LETSENCRYPT_SSL_EMAIL_ID")

	out, err = execute(t, "env", file, "--secure", "--dotenv")
	require.NoError(t, err)
	assert.Regexp(t, `EP_EXECENV="?sandbox"?`, out)
	assert.Contains(t, out, "LETSENCRYPT_SSL_EMAIL_ID")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "giac dev")
}

func TestRun_ExitCodes(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, ExitSuccess, run([]string{"version"}))
	assert.Equal(t, ExitProjectError, run([]string{"compile", filepath.Join(t.TempDir(), "none.yaml")}))
	assert.Equal(t, ExitConfigError, run([]string{"bogus"}))
}
