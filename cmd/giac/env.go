package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/giac/internal/core/compose"
	"github.com/artpar/giac/internal/core/giac"
)

func newEnvCmd(root *rootOptions) *cobra.Command {
	var dotenv bool
	cmd := &cobra.Command{
		Use:   "env [project-file]",
		Short: "List the environment variables a project needs at runtime",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root, args)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg, cmd.ErrOrStderr())

			_, cc, _, err := prepare(cfg, logger)
			if err != nil {
				return err
			}
			if dotenv {
				text, err := compose.EnvSample(cc)
				if err != nil {
					return fail("render env sample", ExitCompileError, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}
			return printEnvVars(cmd.OutOrStdout(), cc.EnvVars().All())
		},
	}
	cmd.Flags().BoolVar(&dotenv, "dotenv", false, "Print in dotenv format")
	cmd.Flags().Bool("secure", false, "Include variables of the HTTPS proxy")
	return cmd
}

func printEnvVars(w io.Writer, vars []*giac.EnvVarPlaceholder) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDEFAULT\tPURPOSE")
	for _, p := range vars {
		def := p.DefaultText()
		if p.IsRequired() {
			def = "(required)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.QualifiedName(), def, p.Purpose)
	}
	return tw.Flush()
}
