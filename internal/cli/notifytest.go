package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/nodewatch/internal/alerting/message"
	"github.com/vietddude/nodewatch/internal/control"
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test message through the configured notification channels",
	Run:   runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.SendTimeout)
	defer cancel()

	if err := control.BuildNotifier(cfg).Send(ctx, message.Test(time.Now())); err != nil {
		slog.Error("Test notification failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Test notification sent.")
}
