package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"RepoSentinel/internal/domain"
)

var (
	addSubscribers []string
	addRangeType   string
	addStart       string
	addEnd         string
	listRepoFilter string
)

var addCmd = &cobra.Command{
	Use:   "add <owner/repo>",
	Short: "Subscribe to a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(true)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		var customStart, customEnd *time.Time
		if addStart != "" {
			t, err := parseDay(addStart)
			if err != nil {
				return err
			}
			customStart = &t
		}
		if addEnd != "" {
			t, err := parseDay(addEnd)
			if err != nil {
				return err
			}
			customEnd = &t
		}

		sub, err := application.Manager.AddSubscription(cmd.Context(), args[0],
			addSubscribers, domain.TimeRangeType(addRangeType), customStart, customEnd)
		if err != nil {
			return err
		}

		fmt.Printf("subscribed to %s (id %d)\n", sub.Repository, sub.ID)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a subscription and keep its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id %q", args[0])
		}

		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		if err := application.Manager.DeleteSubscription(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("subscription %d removed\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		subs, err := application.Manager.ListSubscriptions(cmd.Context(), listRepoFilter)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("no subscriptions")
			return nil
		}

		for _, sub := range subs {
			state := "enabled"
			if !sub.Enabled {
				state = "disabled"
			}
			last := "never"
			if sub.LastProcessedAt != nil {
				last = sub.LastProcessedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%3d  %-40s %-8s %-6s subscribers=%d last_processed=%s\n",
				sub.ID, sub.Repository, sub.TimeRangeType, state, len(sub.Subscribers), last)
		}
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id %q", args[0])
		}

		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		enabled, err := application.Manager.ToggleEnabled(cmd.Context(), id)
		if err != nil {
			return err
		}
		if enabled {
			fmt.Printf("subscription %d enabled\n", id)
		} else {
			fmt.Printf("subscription %d disabled\n", id)
		}
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <owner/repo> <email>",
	Short: "Add a subscriber to an existing subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		sub, err := application.Manager.AddSubscriber(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s now has %d subscribers\n", sub.Repository, len(sub.Subscribers))
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <owner/repo> <email>",
	Short: "Remove a subscriber; the last one removes the subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		if err := application.Manager.RemoveSubscriber(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s removed from %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	addCmd.Flags().StringSliceVar(&addSubscribers, "subscriber", nil, "subscriber email (repeatable)")
	addCmd.Flags().StringVar(&addRangeType, "range", string(domain.RangeDaily), "time range type: daily or custom")
	addCmd.Flags().StringVar(&addStart, "start", "", "custom range start (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "custom range end (YYYY-MM-DD, exclusive)")

	listCmd.Flags().StringVar(&listRepoFilter, "repo", "", "only show subscriptions for this owner/repo")
}
