package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/giac/internal/shell/store"
)

var errNoLedger = errors.New("no ledger configured; set --ledger or GIAC_LEDGER_DSN")

// openLedger opens the SQLite ledger, creating its directory.
func openLedger(dsn string) (*store.SQLiteStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fail("open ledger", ExitLedgerError, err)
		}
	}
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, fail("open ledger", ExitLedgerError, err)
	}
	return s, nil
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	var (
		limit     int
		artifacts bool
	)
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show compile runs recorded in the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(root.configPath, bindFlags(cmd))
			if err != nil {
				return fail("load config", ExitConfigError, err)
			}
			if cfg.Ledger.DSN == "" {
				return fail("open ledger", ExitConfigError, errNoLedger)
			}
			s, err := openLedger(cfg.Ledger.DSN)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			var runs []store.Run
			if len(args) == 1 {
				run, err := s.GetRun(ctx, args[0])
				if err != nil {
					return fail("get run", ExitLedgerError, err)
				}
				runs = []store.Run{*run}
				artifacts = true
			} else {
				runs, err = s.ListRuns(ctx, store.ListOptions{Limit: limit}.Normalize())
				if err != nil {
					return fail("list runs", ExitLedgerError, err)
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSERVICES\tPROJECT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.StartedAt.Format(time.RFC3339), r.Status, r.Services, r.ProjectPath)
				if r.ErrorMessage != "" {
					fmt.Fprintf(tw, "\terror: %s\t\t\t\n", r.ErrorMessage)
				}
				if !artifacts {
					continue
				}
				recs, err := s.ListArtifacts(ctx, r.ID)
				if err != nil {
					return fail("list artifacts", ExitLedgerError, err)
				}
				for _, a := range recs {
					fmt.Fprintf(tw, "\t%s\t%s\t%d\t%.12s\n", a.Key, a.Mode, a.Size, a.SHA256)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "Include recorded artifacts")
	return cmd
}
