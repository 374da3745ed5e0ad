package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/alarm-console/console/internal/app"
	"github.com/telhawk-systems/alarm-console/console/internal/detail"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/output"
	"github.com/telhawk-systems/alarm-console/console/internal/paginator"
	"github.com/telhawk-systems/alarm-console/console/internal/searchbox"
)

var alarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "Alarm management",
	Long:  "List, inspect, update and delete correlated alarms",
}

var alarmsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List alarms, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		if err := requirePositive("page", page); err != nil {
			return err
		}
		if err := requirePositive("limit", limit); err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			state := paginator.New(limit, a.Config.Poller.MaxVisiblePages)
			state.CurrentPage = page
			res, err := a.Store.ListAlarms(ctx, state.Offset(), limit)
			if err != nil {
				return fmt.Errorf("failed to list alarms: %w", err)
			}
			state.TotalItems = res.Total

			rows := toRows(res.Alarms)
			if p.Structured() {
				return p.Encode(map[string]interface{}{
					"alarms": rows,
					"page":   state.CurrentPage,
					"pages":  state.Pages(),
					"total":  res.Total,
				})
			}
			if len(rows) == 0 {
				p.Info("No alarms found")
				return nil
			}
			renderRows(p, rows)
			p.Info("\nPage %d of %d (%d alarms)", state.CurrentPage, state.Pages(), res.Total)
			return nil
		})
	},
}

var alarmsSearchCmd = &cobra.Command{
	Use:   "search <id>[,<id>...]",
	Short: "Show alarms by id",
	Long:  "Show the alarms whose ids are given as a comma-separated list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, ok := searchbox.Parse(strings.Join(args, ","))
		if !ok {
			return fmt.Errorf("invalid alarm ids: each id must be at least %d characters", searchbox.MinIDLength)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			alarms, err := a.Store.SearchAlarms(ctx, ids)
			if err != nil {
				return fmt.Errorf("failed to search alarms: %w", err)
			}
			rows := toRows(alarms)
			if p.Structured() {
				return p.Encode(rows)
			}
			if len(rows) == 0 {
				p.Info("No alarms found")
				return nil
			}
			renderRows(p, rows)
			return nil
		})
	},
}

var alarmsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an alarm with its rules and first stage events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			d, err := a.Details.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if p.Structured() {
				return p.Encode(d)
			}
			renderDetail(p, d)
			if d.Stage != nil {
				p.Info("\nStage %d events (%d)", d.Stage.Stage, d.Stage.Total)
				renderEvents(p, d.Stage.Events)
			}
			return nil
		})
	},
}

var alarmsEventsCmd = &cobra.Command{
	Use:   "events <id> <stage>",
	Short: "Show the events behind one stage of an alarm",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := strconv.Atoi(args[1])
		if err != nil || stage < 1 {
			return fmt.Errorf("stage must be a positive number, got %q", args[1])
		}
		size, _ := cmd.Flags().GetInt("size")

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			if size <= 0 {
				d, err := a.Details.Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				rule, ok := d.Rule(stage)
				if !ok {
					return fmt.Errorf("alarm %s has no stage %d", args[0], stage)
				}
				size = rule.EventsCount
			}

			events, err := a.Details.LoadStageEvents(ctx, args[0], stage, size)
			if err != nil {
				return err
			}
			if p.Structured() {
				return p.Encode(events)
			}
			if len(events.Events) == 0 {
				p.Info("No events found")
				return nil
			}
			renderEvents(p, events.Events)
			p.Info("\n%d events. %s", events.Total, events.Link)
			return nil
		})
	},
}

var alarmsStatusCmd = &cobra.Command{
	Use:   "status <id> <value>",
	Short: "Change the status of an alarm",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeField(cmd, args[0], args[1], "status", func(ctx context.Context, l *detail.Loader, d *detail.Detail, v string) (*detail.Detail, error) {
			return l.ChangeStatus(ctx, d, v)
		})
	},
}

var alarmsTagCmd = &cobra.Command{
	Use:   "tag <id> <value>",
	Short: "Change the tag of an alarm",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeField(cmd, args[0], args[1], "tag", func(ctx context.Context, l *detail.Loader, d *detail.Detail, v string) (*detail.Detail, error) {
			return l.ChangeTag(ctx, d, v)
		})
	},
}

type changeFunc func(ctx context.Context, l *detail.Loader, d *detail.Detail, value string) (*detail.Detail, error)

func changeField(cmd *cobra.Command, id, value, field string, change changeFunc) error {
	return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
		d, err := a.Details.Fetch(ctx, id)
		if err != nil {
			return err
		}
		updated, err := change(ctx, a.Details, d, value)
		if err != nil {
			return err
		}
		if p.Structured() {
			return p.Encode(updated.Alarm)
		}
		p.Success("Alarm %s %s is %s", id, field, value)
		return nil
	})
}

var alarmsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alarm with its alarm events and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		yes, _ := cmd.Flags().GetBool("yes")

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			a.List.RequestDelete(id)
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete alarm %s and all its events? [y/N] ", id))
				if err != nil {
					return err
				}
				if !ok {
					a.List.CancelDelete()
					p.Info("Cancelled")
					return nil
				}
			}

			report, err := a.List.ConfirmDelete(ctx)
			a.List.Wait()
			if err != nil {
				return fmt.Errorf("failed to delete alarm %s: %w", id, err)
			}
			if p.Structured() {
				return p.Encode(report)
			}
			p.Success("Alarm %s deleted (%d alarm events, %d events)", id, report.AlarmEvents, report.Events)
			return nil
		})
	},
}

var alarmsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the operator audit trail of an alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			if a.AuditLog == nil {
				return fmt.Errorf("audit trail is not enabled: set database.enabled and database.url")
			}
			entries, err := a.AuditLog.List(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if p.Structured() {
				return p.Encode(entries)
			}
			if len(entries) == 0 {
				p.Info("No audit entries for alarm %s", args[0])
				return nil
			}

			table := output.NewTable([]string{"When", "Action", "Old", "New", "Operator", "Source", "Outcome"})
			for _, e := range entries {
				table.AddRow([]string{
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					string(e.Action),
					e.OldValue,
					e.NewValue,
					e.Operator,
					e.Source,
					e.Outcome,
				})
			}
			p.Render(table)
			return nil
		})
	},
}

// confirm asks question on stdout and reads the answer from stdin.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func toRows(alarms []models.Alarm) []models.TableRow {
	rows := make([]models.TableRow, 0, len(alarms))
	for _, a := range alarms {
		rows = append(rows, models.NewTableRow(a))
	}
	return rows
}

func renderRows(p *output.Printer, rows []models.TableRow) {
	table := output.NewTable([]string{"ID", "Title", "Updated", "Status", "Risk", "Tag", "Source IPs", "Destination IPs"})
	for _, r := range rows {
		table.AddRow([]string{
			r.ID,
			r.Title,
			time.Unix(r.UpdateTime, 0).Local().Format("2006-01-02 15:04"),
			r.Status,
			string(r.RiskClass),
			r.Tag,
			strings.Join(r.SrcIPs, ", "),
			strings.Join(r.DstIPs, ", "),
		})
	}
	p.Render(table)
}

func renderDetail(p *output.Printer, d *detail.Detail) {
	a := d.Alarm
	p.Info("%s  %s", a.ID, a.Title)
	p.Info("Status: %s   Tag: %s   Risk: %s (%d)", a.Status, a.Tag, a.RiskClass, a.Risk)
	p.Info("Created: %s   Updated: %s",
		time.Unix(a.CreatedTime, 0).Local().Format("2006-01-02 15:04:05"),
		time.Unix(a.UpdateTime, 0).Local().Format("2006-01-02 15:04:05"))
	p.Info("Source IPs: %s", strings.Join(a.SrcIPs, ", "))
	p.Info("Destination IPs: %s\n", strings.Join(a.DstIPs, ", "))

	table := output.NewTable([]string{"Stage", "Rule", "Status", "Events", "Occurrence", "Reliability"})
	for _, r := range d.Rules {
		table.AddRow([]string{
			strconv.Itoa(r.Stage),
			r.Name,
			string(r.DerivedStatus),
			strconv.Itoa(r.EventsCount),
			strconv.Itoa(r.Occurrence),
			strconv.Itoa(r.Reliability),
		})
	}
	p.Render(table)
}

func renderEvents(p *output.Printer, events []detail.EventRow) {
	table := output.NewTable([]string{"Event ID", "Timestamp", "Title", "Source", "Destination", "Protocol", "Sensor"})
	for _, e := range events {
		table.AddRow([]string{
			e.EventID,
			e.Timestamp,
			e.Title,
			e.SrcIP + ":" + strconv.Itoa(e.SrcPort),
			e.DstIP + ":" + strconv.Itoa(e.DstPort),
			e.Protocol,
			e.Sensor,
		})
	}
	p.Render(table)
}

func init() {
	rootCmd.AddCommand(alarmsCmd)
	alarmsCmd.AddCommand(alarmsListCmd)
	alarmsCmd.AddCommand(alarmsSearchCmd)
	alarmsCmd.AddCommand(alarmsGetCmd)
	alarmsCmd.AddCommand(alarmsEventsCmd)
	alarmsCmd.AddCommand(alarmsStatusCmd)
	alarmsCmd.AddCommand(alarmsTagCmd)
	alarmsCmd.AddCommand(alarmsDeleteCmd)
	alarmsCmd.AddCommand(alarmsHistoryCmd)

	alarmsListCmd.Flags().Int("page", 1, "page number")
	alarmsListCmd.Flags().Int("limit", 20, "alarms per page")

	alarmsEventsCmd.Flags().Int("size", 0, "events to load (default: the stage's event count)")

	alarmsDeleteCmd.Flags().BoolP("yes", "y", false, "delete without asking for confirmation")

	alarmsHistoryCmd.Flags().Int("limit", 50, "maximum entries")
}
