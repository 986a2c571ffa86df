package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/config"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/database"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// defaultHistoryLimit is how many batches --list shows.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous upload batches",
		Long: `History reads the batches recorded by 'objdetect upload' from the local
database in the XDG data directory.

Examples:
  # List the most recent batches
  objdetect history

  # Show the full report of batch 7
  objdetect history --show 7

  # Same, as Markdown
  objdetect history --show 7 --markdown

  # Find earlier detections of an image by its digest
  objdetect history --digest 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List recorded batches (default when no other action is given)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum batches to list (0 = all)")
	cmd.Flags().Int64P("show", "s", 0,
		"Show the report of the batch with this ID")
	cmd.Flags().String("digest", "",
		"List successful uploads of the file with this SHA3-256 digest")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the batch report in Markdown format")
	addDBDirFlag(cmd)

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	digest, err := flags.GetString("digest")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if showID < 0 {
		return fmt.Errorf("invalid batch ID: %d", showID)
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case showID > 0:
		return showBatch(ctx, db, out, showID, jsonOutput, markdownOutput)
	case digest != "":
		return listByDigest(ctx, db, out, digest, jsonOutput)
	default:
		return listBatches(ctx, db, out, limit, jsonOutput)
	}
}

// listBatches prints the most recent batches.
func listBatches(ctx context.Context, db *database.HistoryDB, out io.Writer, limit int, jsonOutput bool) error {
	batches, err := db.ListBatches(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		if batches == nil {
			batches = []database.BatchSummary{}
		}
		return encodeJSON(out, batches)
	}

	if len(batches) == 0 {
		fmt.Fprintln(out, "No batches recorded yet.")
		fmt.Fprintln(out, "\nUse 'objdetect upload <image>...' to upload images.")
		return nil
	}

	fmt.Fprintf(out, "Recorded batches (%d):\n\n", len(batches))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-8s  %-10s  %s\n", "ID", "Started", "Files", "Failed", "Time", "Bucket")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, b := range batches {
		elapsed := fmt.Sprintf("%.3fs", b.Elapsed.Seconds())
		if !b.Finished {
			elapsed = "stopped"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-8d  %-10s  %s\n",
			b.ID,
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			b.Files,
			b.Failed,
			elapsed,
			b.Bucket,
		)
	}

	fmt.Fprintln(out, "\nUse 'objdetect history --show <id>' to see a batch report.")
	return nil
}

// showBatch prints one stored batch with the report writers used by upload.
func showBatch(ctx context.Context, db *database.HistoryDB, out io.Writer, id int64, jsonOutput, markdownOutput bool) error {
	batch, err := db.GetBatch(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrBatchNotFound) {
			return fmt.Errorf("batch %d not found (use --list to see recorded batches)", id)
		}
		return err
	}

	_, err = newReportWriter(out, jsonOutput, markdownOutput, true).Write(batch)
	return err
}

// listByDigest prints earlier successful uploads of the same content.
func listByDigest(ctx context.Context, db *database.HistoryDB, out io.Writer, digest string, jsonOutput bool) error {
	outcomes, err := db.FindByDigest(ctx, strings.ToLower(strings.TrimSpace(digest)))
	if err != nil {
		return err
	}

	if jsonOutput {
		if outcomes == nil {
			outcomes = []model.Outcome{}
		}
		return encodeJSON(out, outcomes)
	}

	if len(outcomes) == 0 {
		fmt.Fprintf(out, "No successful uploads found for digest %s\n", digest)
		return nil
	}

	for _, o := range outcomes {
		fmt.Fprintf(out, "%s  %s  %s\n", o.FinishedAt.Local().Format("2006-01-02 15:04:05"), o.File.Name, o.ObjectKey)
		if o.Result == nil {
			continue
		}
		for _, obj := range o.Result.Objects {
			fmt.Fprintf(out, "    %s (%s)\n", obj.Label, model.FormatAccuracy(obj.Accuracy))
		}
	}
	return nil
}

// addDBDirFlag registers the hidden history database location.
func addDBDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")
	_ = cmd.Flags().MarkHidden("db-dir") //nolint:errcheck // flag registered above
}

func encodeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
