package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/alarm-console/common/messaging"
	"github.com/telhawk-systems/alarm-console/console/internal/app"
	"github.com/telhawk-systems/alarm-console/console/internal/output"
)

type statusReport struct {
	Store         string `json:"store"`
	Reachable     bool   `json:"reachable"`
	Status        string `json:"status"`
	Notifications bool   `json:"notifications"`
	CountCache    bool   `json:"count_cache"`
	AuditTrail    bool   `json:"audit_trail"`

	Bus *messaging.HealthStatus `json:"bus,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the connection to the alarm store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			ok, err := a.Health.Check(ctx)
			report := statusReport{
				Store:         a.Health.Label(),
				Reachable:     ok,
				Status:        a.Health.Status(),
				Notifications: a.Notifier.Enabled(),
				CountCache:    a.Counts.IsEnabled(),
				AuditTrail:    a.AuditLog != nil,
			}
			if a.Bus != nil {
				bus := messaging.CheckClientHealth(ctx, a.Bus)
				report.Bus = &bus
			}

			if p.Structured() {
				if encErr := p.Encode(report); encErr != nil {
					return encErr
				}
				return err
			}

			if ok {
				p.Success("%s", report.Status)
			} else {
				p.Error("%s", report.Status)
			}
			p.Info("Notifications: %s", enabled(report.Notifications))
			if report.Bus != nil && !report.Bus.Connected {
				p.Warn("Message bus: %s", report.Bus.Error)
			}
			p.Info("Count cache:   %s", enabled(report.CountCache))
			p.Info("Audit trail:   %s", enabled(report.AuditTrail))
			return err
		})
	},
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
