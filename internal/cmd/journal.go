package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/quotagate/quotagate/internal/core/store"
	errwrap "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/output"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the admission journal",
	Long: `Inspect or clear the admission journal written by demo --journal and
stress --journal. The journal is an audit log; limiters never read it back.`,
}

var (
	journalListRun    string
	journalListSource string
	journalListLimit  int

	journalResetAll    bool
	journalResetRun    string
	journalResetSource string
	journalResetYes    bool
	journalResetDryRun bool
)

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled admissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
		}
		outPath, err := resolveSinkPath(cmd, "journal.list", format)
		if err != nil {
			return err
		}

		query := store.AdmissionQuery{
			RunID:  strings.TrimSpace(journalListRun),
			Source: strings.TrimSpace(journalListSource),
			Limit:  journalListLimit,
		}
		if query.RunID == "" && query.Source == "" {
			query.All = true
		}
		if query.Limit < 0 {
			return errwrap.NewInvalidInputError(fmt.Sprintf("--limit must not be negative, got %d", query.Limit))
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to open admission journal")
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListAdmissions(ctx, query)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to list admissions")
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		if format == output.FormatTable && len(records) == 0 {
			_, _ = fmt.Fprint(sink, ascii.DrawBox("Admission Journal\n\n(no journaled admissions)", 0))
			return nil
		}

		rendered, err := output.NewFormatter(format).FormatJournal(records)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink, rendered)
		return err
	},
}

var journalResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete journaled admissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
		}
		if format == output.FormatYAML {
			return errwrap.NewInvalidInputError(fmt.Sprintf("journal reset supports table or json output, not %s", format))
		}
		outPath, err := resolveSinkPath(cmd, "journal.reset", format)
		if err != nil {
			return err
		}

		query := store.AdmissionQuery{
			All:    journalResetAll,
			RunID:  strings.TrimSpace(journalResetRun),
			Source: strings.TrimSpace(journalResetSource),
		}
		if err := query.Validate(); err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "invalid journal filter")
		}
		if query.All && !journalResetYes && !journalResetDryRun {
			return errwrap.NewInvalidInputError("--all requires --yes (or use --dry-run)")
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to open admission journal")
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountAdmissions(ctx, query)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to count admissions")
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		if journalResetDryRun {
			return writeJournalResetResult(format, sink, matched, 0, true)
		}

		deleted, err := db.ResetAdmissions(ctx, query)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to reset admissions")
		}
		return writeJournalResetResult(format, sink, matched, deleted, false)
	},
}

func writeJournalResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d admission(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d admission(s)\n", deleted, matched)
	return err
}

func init() {
	journalListCmd.Flags().StringVar(&journalListRun, "run", "", "only admissions from this run id")
	journalListCmd.Flags().StringVar(&journalListSource, "source", "", "only admissions from this source (demo, stress)")
	journalListCmd.Flags().IntVar(&journalListLimit, "limit", 0, "list at most this many rows (0 lists all)")
	addOutputFlags(journalListCmd, "table|json|yaml")

	journalResetCmd.Flags().BoolVar(&journalResetAll, "all", false, "delete every admission")
	journalResetCmd.Flags().StringVar(&journalResetRun, "run", "", "delete admissions from this run id")
	journalResetCmd.Flags().StringVar(&journalResetSource, "source", "", "delete admissions from this source")
	journalResetCmd.Flags().BoolVar(&journalResetYes, "yes", false, "confirm destructive reset")
	journalResetCmd.Flags().BoolVar(&journalResetDryRun, "dry-run", false, "show what would be deleted")
	addOutputFlags(journalResetCmd, "table|json")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalResetCmd)
	rootCmd.AddCommand(journalCmd)
}
