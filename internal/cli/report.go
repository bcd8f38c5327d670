package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	reportStart   string
	reportEnd     string
	reportDeliver bool
)

var reportCmd = &cobra.Command{
	Use:   "report [id]",
	Short: "Generate Markdown digests from stored snapshots",
	Long:  "Generate digests for one subscription, or for every enabled subscription when no id is given. The window defaults to the previous UTC day.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		to := time.Now().UTC().Truncate(24 * time.Hour)
		from := to.Add(-24 * time.Hour)
		if reportStart != "" {
			if from, err = parseDay(reportStart); err != nil {
				return err
			}
		}
		if reportEnd != "" {
			if to, err = parseDay(reportEnd); err != nil {
				return err
			}
		}

		if len(args) == 1 {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", args[0])
			}
			sub, err := application.Manager.GetSubscription(cmd.Context(), id)
			if err != nil {
				return err
			}
			path, err := application.Reports.Generate(cmd.Context(), sub, from, to)
			if err != nil {
				return err
			}
			fmt.Println(path)
			if reportDeliver {
				return application.Reports.Deliver(cmd.Context(), sub, path)
			}
			return nil
		}

		subs, err := application.Manager.ListSubscriptions(cmd.Context(), "")
		if err != nil {
			return err
		}
		if reportDeliver {
			for _, path := range application.Reports.GenerateAndDeliver(cmd.Context(), subs, from, to) {
				fmt.Println(path)
			}
			return nil
		}
		for _, sub := range subs {
			if !sub.Enabled {
				continue
			}
			path, err := application.Reports.Generate(cmd.Context(), sub, from, to)
			if err != nil {
				fmt.Printf("%s: %v\n", sub.Repository, err)
				continue
			}
			fmt.Println(path)
		}
		return nil
	},
}

var hackernewsCmd = &cobra.Command{
	Use:   "hackernews",
	Short: "Print trending Hacker News stories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(false)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		if application.Trending == nil {
			return fmt.Errorf("hacker news crawler is not configured")
		}

		stories, err := application.Trending.TopStories(cmd.Context(), application.Cfg.HackerNews.Limit)
		if err != nil {
			return err
		}
		for _, story := range stories {
			fmt.Printf("%2d. %s (%d points)\n    %s\n", story.Rank, story.Title, story.Points, story.URL)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "window start (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "window end (YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportDeliver, "deliver", false, "also send the digest to subscribers")
}
