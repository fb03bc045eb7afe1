package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/nodewatch/internal/control"
	"github.com/vietddude/nodewatch/internal/monitoring/scheduler"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query every configured node once and print its status",
	Run:   runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	client := control.NewStatusClient(cfg)
	defer func() {
		_ = client.Close()
	}()
	sched := scheduler.New(client, nil)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NODE\tHEIGHT\tCATCHING UP\tVALIDATOR\tERROR")

	failed := false
	for _, node := range cfg.ResolvedNodes() {
		obs := sched.PollOnce(context.Background(), node)
		if obs.Failed() {
			failed = true
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t%v\n", node.Moniker, obs.Err)
			continue
		}

		validator := "-"
		if v := obs.Validator; v != nil {
			validator = fmt.Sprintf("jailed=%t tombstoned=%t missed=%d", v.Jailed, v.Tombstoned, v.MissedBlocks)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%s\t\n", node.Moniker, *obs.Height, *obs.CatchingUp, validator)
	}
	_ = w.Flush()

	if failed {
		os.Exit(2)
	}
}
