package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitProjectError = 2
	ExitCompileError = 3
	ExitPersistError = 4
	ExitLedgerError  = 5
	ExitVerifyError  = 6
)

// CommandError carries the exit code of a failed command.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func fail(op string, code int, err error) error {
	return &CommandError{Op: op, Err: err, ExitCode: code}
}

// =============================================================================
// Root Command
// =============================================================================

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "giac",
		Short: "Compile service stacks into compose manifests",
		Long: `giac turns a project file describing services into a docker compose
manifest plus the files those services mount: Dockerfiles, init scripts,
certificate stores and an environment sample.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(`{{printf "giac %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	cmd.PersistentFlags().String("ledger", "", "SQLite ledger path; empty disables it")

	cmd.AddCommand(newCompileCmd(opts))
	cmd.AddCommand(newEnvCmd(opts))
	cmd.AddCommand(newRunsCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// run executes the CLI and maps failures to exit codes.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var cErr *CommandError
	if errors.As(err, &cErr) {
		return cErr.ExitCode
	}
	return ExitConfigError
}

// flagKeys maps command flags to config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"ledger":     "ledger.dsn",
	"output":     "output.dest",
	"manifest":   "output.manifest",
	"env-sample": "output.env_sample",
	"memory":     "output.memory",
	"dry-run":    "output.dry_run",
	"secure":     "proxy.secure",
	"name":       "project.name",
	"path":       "project.path",
}

// bindFlags binds the changed flags of cmd onto their config keys.
func bindFlags(cmd *cobra.Command) Binder {
	return func(v *viper.Viper) error {
		for name, key := range flagKeys {
			f := cmd.Flags().Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
		return nil
	}
}

// loadConfig reads configuration for cmd, with the positional project
// file taking precedence over project.file.
func loadConfig(cmd *cobra.Command, opts *rootOptions, args []string) (*Config, error) {
	cfg, err := LoadConfig(opts.configPath, bindFlags(cmd))
	if err != nil {
		return nil, fail("load config", ExitConfigError, err)
	}
	if len(args) > 0 {
		cfg.Project.File = args[0]
	}
	return cfg, nil
}
