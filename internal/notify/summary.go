// Package notify formats run-completion summaries shared by notifier implementations.
package notify

import (
	"fmt"
	"html"
	"time"

	"termsheet/internal/domain"
)

// Subject returns the notification subject for run.
func Subject(run *domain.Run) string {
	return fmt.Sprintf("Term sheet extraction %s: %d documents, %d failed", run.Status, run.Documents, run.Failed)
}

// TextBody returns the plain-text summary.
func TextBody(run *domain.Run) string {
	return fmt.Sprintf("Run %s finished with status %s.\n\nProvider: %s\nModel: %s\nDocuments: %d\nFailed: %d\nDuration: %s\n",
		run.ID, run.Status, run.Provider, run.Model, run.Documents, run.Failed, duration(run))
}

// HTMLBody returns the HTML summary.
func HTMLBody(run *domain.Run) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Term sheet extraction %s</h2>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Run</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Provider</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Model</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Documents</td><td>%d</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Failed</td><td>%d</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Duration</td><td>%s</td></tr>
  </table>
</body>
</html>`,
		html.EscapeString(string(run.Status)), run.ID, html.EscapeString(run.Provider),
		html.EscapeString(run.Model), run.Documents, run.Failed, duration(run))
}

func duration(run *domain.Run) string {
	if run.FinishedAt == nil {
		return "unknown"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
