package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"RepoSentinel/internal/domain"
)

var (
	processStart string
	processEnd   string
	processForce bool
)

var processCmd = &cobra.Command{
	Use:   "process <id>",
	Short: "Fetch and snapshot activity for one subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id %q", args[0])
		}

		application, err := newApp(true)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		var start, end *time.Time
		if processStart != "" {
			t, err := parseDay(processStart)
			if err != nil {
				return err
			}
			start = &t
		}
		if processEnd != "" {
			t, err := parseDay(processEnd)
			if err != nil {
				return err
			}
			end = &t
		}

		sub, err := application.Manager.GetSubscription(cmd.Context(), id)
		if err != nil {
			return err
		}

		result, err := application.Manager.ProcessSubscription(cmd.Context(), sub, start, end, !processForce)
		if err != nil {
			return err
		}

		printResult(result)
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d days failed", result.Failed, result.Total())
		}
		return nil
	},
}

var processAllCmd = &cobra.Command{
	Use:   "process-all",
	Short: "Fetch and snapshot activity for every enabled subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(true)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		results, err := application.Manager.ProcessAll(cmd.Context(), nil, nil, !processForce)
		if err != nil {
			return err
		}

		failed := 0
		for _, result := range results {
			printResult(result)
			failed += result.Failed
		}
		if failed > 0 {
			return fmt.Errorf("%d days failed across %d subscriptions", failed, len(results))
		}
		return nil
	},
}

func printResult(result domain.ProcessResult) {
	fmt.Printf("%s (id %d): %d succeeded, %d skipped, %d failed\n",
		result.Repository, result.SubscriptionID, result.Succeeded, result.Skipped, result.Failed)
	if result.Reason != "" {
		fmt.Printf("  %s\n", result.Reason)
	}
	for _, day := range result.Days {
		line := fmt.Sprintf("  %s %s", day.Day.Format("2006-01-02"), day.Status)
		if day.SnapshotPath != "" {
			line += " " + day.SnapshotPath
		}
		if day.Reason != "" {
			line += " (" + day.Reason + ")"
		}
		fmt.Println(line)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{processCmd, processAllCmd} {
		cmd.Flags().BoolVar(&processForce, "force", false, "refetch days that already have snapshots")
	}
	processCmd.Flags().StringVar(&processStart, "start", "", "window start override (YYYY-MM-DD)")
	processCmd.Flags().StringVar(&processEnd, "end", "", "window end override (YYYY-MM-DD, exclusive)")
}
