package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/nerdson/internal/config"
	"github.com/soyeahso/nerdson/internal/store"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the message archive",
	}

	cmd.AddCommand(newArchiveShowCmd())
	return cmd
}

func newArchiveShowCmd() *cobra.Command {
	var (
		user  string
		event string
		since time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print recent archived events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			path := paths.ArchivePath(cfg.Archive)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no archive at %s", path)
			}

			db, err := store.Open(path, log)
			if err != nil {
				return err
			}
			defer db.Close()

			f := store.Filter{User: user, Event: event, Limit: limit}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			entries, err := store.NewArchive(db).Recent(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no events")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-18s %-26s %s\n",
					e.At.Local().Format(time.DateTime), e.Event, e.User, e.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only events for this sender address")
	cmd.Flags().StringVar(&event, "event", "", "only this event name")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to print")

	return cmd
}
