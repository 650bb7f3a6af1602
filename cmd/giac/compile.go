package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/artpar/giac/internal/core/artifact"
	"github.com/artpar/giac/internal/core/compose"
	"github.com/artpar/giac/internal/core/giac"
	"github.com/artpar/giac/internal/shell/persist"
	"github.com/artpar/giac/internal/shell/project"
	"github.com/artpar/giac/internal/shell/store"
)

var errMissingEnv = errors.New("required environment variables are not set")

// =============================================================================
// Compile Command
// =============================================================================

type compileOptions struct {
	strict   bool
	envFiles []string
	noVerify bool
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile [project-file]",
		Short: "Compile a project into a compose manifest and related artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root, args)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg, cmd.ErrOrStderr())

			res, err := compile(cmd.Context(), cfg, opts, logger)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "Destination directory (default: project path)")
	f.String("manifest", "", "Manifest artifact name")
	f.String("env-sample", "", "Environment sample artifact name")
	f.Bool("memory", false, "Write to an in-memory filesystem")
	f.Bool("dry-run", false, "Compile and verify without writing")
	f.Bool("secure", false, "Serve proxied services over HTTPS")
	f.String("name", "", "Override the project name")
	f.String("path", "", "Override the project path")
	f.BoolVar(&opts.strict, "strict", false, "Fail when a required environment variable is unset")
	f.StringSliceVar(&opts.envFiles, "env-file", nil, "Read runtime values from dotenv files")
	f.BoolVar(&opts.noVerify, "no-verify", false, "Skip loading the manifest with the compose loader")
	return cmd
}

// compileResult is what a compile produced.
type compileResult struct {
	Project  *project.Project
	Services *giac.Services
	Manifest *compose.Manifest
	Results  []persist.Result
	Run      *store.Run
	Missing  []string
}

// compile loads the project, compiles it, verifies the manifest and
// persists every artifact.
func compile(ctx context.Context, cfg *Config, opts *compileOptions, logger *slog.Logger) (*compileResult, error) {
	p, cc, services, err := prepare(cfg, logger)
	if err != nil {
		return nil, err
	}
	res := &compileResult{Project: p, Services: services}

	env, err := runtimeEnv(opts.envFiles)
	if err != nil {
		return nil, fail("read env file", ExitConfigError, err)
	}
	res.Missing = missingRequired(cc, env)
	if len(res.Missing) > 0 {
		if opts.strict {
			return nil, fail("check environment", ExitConfigError,
				fmt.Errorf("%w: %s", errMissingEnv, strings.Join(res.Missing, ", ")))
		}
		logger.Warn("required environment variables are not set", "names", res.Missing)
	}

	o := compose.NewOrchestrator(
		compose.WithName(cfg.Output.Manifest),
		compose.WithEnvSample(cfg.Output.EnvSample),
		compose.WithLogger(logger),
	)
	er := giac.ErrorReporter(func(origin string, err error) {
		logger.Warn("compile problem", "origin", origin, "error", err)
	})

	if !opts.noVerify {
		m, err := verify(ctx, cc, services, o, env)
		if err != nil {
			return nil, fail("verify manifest", ExitVerifyError, err)
		}
		for _, u := range compose.UnregisteredPlaceholders(cc, m) {
			logger.Warn("unregistered placeholder in manifest", "name", u.Name)
		}
		res.Manifest = m
	}

	ph := newPersistHandler(cfg, p, logger)
	var h artifact.Handler = ph

	if cfg.Ledger.DSN != "" {
		s, err := openLedger(cfg.Ledger.DSN)
		if err != nil {
			return nil, err
		}
		defer s.Close()

		res.Run = store.NewRun(p.Path, cc.ResolvedName())
		res.Run.Services = services.Len()
		if err := s.CreateRun(ctx, res.Run); err != nil {
			return nil, fail("record run", ExitLedgerError, err)
		}
		h = store.NewRecorder(h, s, res.Run)

		defer func() {
			// Use a fresh context so a cancelled compile is still recorded
			if ferr := s.FinishRun(context.WithoutCancel(ctx), res.Run); ferr != nil {
				logger.Error("failed to finish run", "run", res.Run.ID, "error", ferr)
			}
		}()
	}

	err = o.Persist(ctx, cc, services, h, er)
	res.Results = ph.Results()
	if res.Run != nil {
		res.Run.Status = store.RunSucceeded
		if err != nil {
			res.Run.Status = store.RunFailed
			res.Run.ErrorMessage = err.Error()
		}
	}
	if err != nil {
		return res, fail("persist artifacts", ExitPersistError, err)
	}

	logger.Info("compile finished",
		"project", p.Name,
		"services", services.Len(),
		"artifacts", len(res.Results),
	)
	return res, nil
}

// prepare loads the project file and finalizes its services.
func prepare(cfg *Config, logger *slog.Logger) (*project.Project, *giac.Context, *giac.Services, error) {
	p, err := project.Load(cfg.Project.File)
	if err != nil {
		return nil, nil, nil, fail("load project", ExitProjectError, err)
	}
	applyOverrides(p, cfg)

	cc := giac.NewContext(p.Path, giac.Literal(p.ContextName()), giac.WithLogger(logger))
	if _, err := p.Build(cc); err != nil {
		return nil, nil, nil, fail("build project", ExitProjectError, err)
	}
	services, err := cc.Finalize()
	if err != nil {
		return nil, nil, nil, fail("finalize", ExitCompileError, err)
	}
	return p, cc, services, nil
}

func applyOverrides(p *project.Project, cfg *Config) {
	if cfg.Project.Path != "" {
		p.Path = cfg.Project.Path
	}
	if cfg.Project.Name != "" {
		p.Name = cfg.Project.Name
	}
	if cfg.Proxy.Secure {
		if p.Proxy == nil {
			p.Proxy = &project.ProxySpec{}
		}
		p.Proxy.Secure = true
	}
}

func newPersistHandler(cfg *Config, p *project.Project, logger *slog.Logger) *persist.Handler {
	opts := []persist.Option{persist.WithLogger(logger)}
	if cfg.Output.DryRun {
		opts = append(opts, persist.WithDryRun())
	}
	if cfg.Output.Memory {
		return persist.NewMemory(opts...)
	}
	dest := cfg.Output.Dest
	if dest == "" {
		dest = p.Path
	}
	return persist.NewOS(dest, opts...)
}

// verify renders the manifest and loads it the way the engine would.
func verify(ctx context.Context, cc *giac.Context, services *giac.Services, o *compose.Orchestrator, env map[string]string) (*compose.Manifest, error) {
	doc, err := o.ToCompose(cc, services, nil)
	if err != nil {
		return nil, err
	}
	body, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	return compose.Verify(ctx, body, compose.VerifyEnv(cc, env))
}

// runtimeEnv merges dotenv files over the process environment.
func runtimeEnv(files []string) (map[string]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	if len(files) == 0 {
		return env, nil
	}
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		env[k] = v
	}
	return env, nil
}

// missingRequired lists required variables without a value in env.
func missingRequired(cc *giac.Context, env map[string]string) []string {
	var missing []string
	for _, p := range cc.EnvVars().Required() {
		if v, ok := env[p.QualifiedName()]; !ok || v == "" {
			missing = append(missing, p.QualifiedName())
		}
	}
	sort.Strings(missing)
	return missing
}

func printResults(w io.Writer, res *compileResult) {
	for _, r := range res.Results {
		fmt.Fprintf(w, "%s\t%s\t%d bytes\n", r.Mode, r.Path, r.Size)
	}
	if res.Run != nil {
		fmt.Fprintf(w, "run %s recorded\n", res.Run.ID)
	}
}
