package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/nodewatch/internal/control"
	"github.com/vietddude/nodewatch/internal/core/domain"
)

var resetAlertsCmd = &cobra.Command{
	Use:   "reset-alerts [moniker]",
	Short: "Forget the alert history of a node so its next reminder is sent immediately",
	Args:  cobra.ExactArgs(1),
	Run:   runResetAlerts,
}

func init() {
	rootCmd.AddCommand(resetAlertsCmd)
}

func runResetAlerts(cmd *cobra.Command, args []string) {
	node := domain.NodeID(args[0])
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

	if err := store.DeleteNodeAlerts(ctx, node); err != nil {
		slog.Error("Failed to reset alerts", "node", node, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Alert history of %s cleared.\n", node)
}
