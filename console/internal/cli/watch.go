package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/app"
	"github.com/telhawk-systems/alarm-console/console/internal/output"
	"github.com/telhawk-systems/alarm-console/console/internal/searchbox"
	"github.com/telhawk-systems/alarm-console/console/internal/synchronizer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the alarm list as it refreshes",
	Long: `Run the alarm list synchronizer and print the list after every refresh.
The list refreshes on the configured poller interval, and immediately when
another console changes an alarm while notifications are enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		count, _ := cmd.Flags().GetInt("count")

		var ids []string
		if filter != "" {
			var ok bool
			if ids, ok = searchbox.Parse(filter); !ok {
				return fmt.Errorf("invalid --filter: each id must be at least %d characters", searchbox.MinIDLength)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			if ids != nil {
				a.List.SetFilter(ids)
			}
			if err := a.List.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = a.List.Stop()
				a.List.Wait()
			}()

			sub, err := a.FollowChanges()
			if err != nil {
				a.Logger.Warn("not following changes from other consoles", logging.Error(err))
			}
			if sub != nil {
				defer func() { _ = sub.Unsubscribe() }()
			}

			return watch(ctx, a.List, p, count)
		})
	},
}

// watch renders a snapshot each time a fetch completes, until ctx ends or
// count snapshots have been shown.
func watch(ctx context.Context, list *synchronizer.Synchronizer, p *output.Printer, count int) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	shown := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v := list.Snapshot()
		if v.Phase != synchronizer.Idle || v.Seq == lastSeq {
			continue
		}
		lastSeq = v.Seq

		if err := renderView(p, v); err != nil {
			return err
		}
		shown++
		if count > 0 && shown >= count {
			return nil
		}
	}
}

func renderView(p *output.Printer, v synchronizer.View) error {
	if p.Structured() {
		return p.Encode(v)
	}

	p.Info("\n%s", time.Now().Format("15:04:05"))
	if v.Alert != nil {
		switch v.Alert.Severity {
		case alertbox.Danger:
			p.Error("%s", v.Alert.Message)
		case alertbox.Warning:
			p.Warn("%s", v.Alert.Message)
		default:
			p.Info("%s", v.Alert.Message)
		}
	}
	if len(v.Rows) == 0 {
		p.Info("No alarms found")
	} else {
		renderRows(p, v.Rows)
	}

	switch {
	case v.Filtered():
		p.Info("Filtered by %d id(s), auto refresh off", len(v.Filter))
	case v.Paused:
		p.Info("Page %d of %d, auto refresh paused", v.Page.CurrentPage, v.Pages)
	default:
		p.Info("Page %d of %d, next refresh in %ds", v.Page.CurrentPage, v.Pages, v.Countdown)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("filter", "", "comma-separated alarm ids to follow")
	watchCmd.Flags().Int("count", 0, "exit after this many refreshes (0: until interrupted)")
}
