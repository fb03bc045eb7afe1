package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/nodewatch/internal/control"
	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/core/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted health state of all nodes",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := control.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	snaps, err := store.ListSnapshots(ctx)
	if err != nil {
		slog.Error("Failed to list snapshots", "error", err)
		os.Exit(1)
	}
	if len(snaps) == 0 {
		fmt.Println("No node state stored (the memory backend keeps state only while the daemon runs).")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NODE\tSTATUS\tHEIGHT\tLAST INCREASE\tFAILURES\tUPDATED\tDESCRIPTION")
	for _, s := range snaps {
		status := string(s.Status)
		if s.ValidatorIssue && s.Status != domain.StatusValidatorIssue {
			status += " (+validator)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			s.NodeID, status, s.LastHeight, formatTime(s.LastIncreaseAt),
			s.ConsecutiveFailures, formatTime(s.UpdatedAt), health.StatusDescription(s.Status))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
