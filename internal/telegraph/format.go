package telegraph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/models"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// prioritySeverity returns the severity for a message priority.
func prioritySeverity(p models.Priority) string {
	switch p {
	case models.PriorityUrgent:
		return "error"
	case models.PriorityHigh:
		return "warning"
	default:
		return "info"
	}
}

// statusSeverity returns the severity for an agent presence status.
func statusSeverity(s models.Status) string {
	switch s {
	case models.StatusAvailable:
		return "success"
	case models.StatusNotReady, models.StatusOffline:
		return "warning"
	default:
		return "info"
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatMessage formats an operational message.
func FormatMessage(m models.Message) FormattedEvent {
	sender := m.FromName
	if sender == "" {
		sender = m.From
	}
	severity := prioritySeverity(m.Priority)

	to := m.ToName
	if !m.To.IsBroadcast() {
		to = fmt.Sprintf("%s (%s)", m.ToName, m.To.Code())
	}

	return FormattedEvent{
		Title:    fmt.Sprintf("%s %s from %s", title(string(m.Priority)), m.Type, sender),
		Body:     m.Body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "To", Value: to, Short: true},
			{Name: "Priority", Value: string(m.Priority), Short: true},
			{Name: "Type", Value: string(m.Type), Short: true},
		},
	}
}

func agentFields(a models.Agent) []Field {
	fields := []Field{{Name: "Agent", Value: a.Code, Short: true}}
	if a.Department != "" {
		fields = append(fields, Field{Name: "Department", Value: a.Department, Short: true})
	}
	if a.Supervisor != "" {
		fields = append(fields, Field{Name: "Supervisor", Value: a.Supervisor, Short: true})
	}
	return fields
}

// FormatStatusChange formats an agent presence transition.
func FormatStatusChange(p fanout.AgentStatusChanged) FormattedEvent {
	severity := statusSeverity(p.NewStatus)

	bodyParts := []string{fmt.Sprintf("%s → %s", p.OldStatus, p.NewStatus)}
	if p.Reason != "" {
		bodyParts = append(bodyParts, fmt.Sprintf("Reason: %s", p.Reason))
	}

	return FormattedEvent{
		Title:    fmt.Sprintf("%s is now %s", p.Agent.Name, p.NewStatus),
		Body:     strings.Join(bodyParts, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   agentFields(p.Agent),
	}
}

// FormatLogin formats an agent login.
func FormatLogin(p fanout.AgentLogin) FormattedEvent {
	body := "Returning agent"
	if p.FirstSeen {
		body = "First login"
	}
	return FormattedEvent{
		Title:    fmt.Sprintf("%s logged in", p.Agent.Name),
		Body:     body,
		Severity: "success",
		Color:    ColorSuccess,
		Fields:   agentFields(p.Agent),
	}
}

// FormatLogout formats an agent logout.
func FormatLogout(p fanout.AgentLogout) FormattedEvent {
	return FormattedEvent{
		Title:    fmt.Sprintf("%s logged out", p.Agent.Name),
		Body:     fmt.Sprintf("%d calls handled", p.Agent.TotalCalls),
		Severity: "info",
		Color:    ColorInfo,
		Fields:   agentFields(p.Agent),
	}
}

// FormatDigest formats a periodic summary of dashboard stats.
func FormatDigest(st dashboard.Stats) FormattedEvent {
	a, m, perf := st.Agents, st.Messages, st.Performance

	bodyLines := []string{
		fmt.Sprintf("**Agents**: %d online of %d (%d available, %d active, %d wrap up, %d not ready)",
			a.Online, a.Total, a.Available, a.Active, a.WrapUp, a.NotReady),
		fmt.Sprintf("**Messages**: %d today, %d unread, %d high priority", m.Today, m.Unread, m.HighPriority),
	}
	if perf.TotalCalls > 0 {
		bodyLines = append(bodyLines, fmt.Sprintf("**Calls**: %d total, %ds average", perf.TotalCalls, perf.AverageCallTime))
	}

	fields := []Field{
		{Name: "Online", Value: fmt.Sprintf("%d/%d", a.Online, a.Total), Short: true},
		{Name: "Active Rate", Value: fmt.Sprintf("%d%%", perf.ActiveRate), Short: true},
	}
	for _, name := range slices.Sorted(maps.Keys(st.Departments)) {
		d := st.Departments[name]
		fields = append(fields, Field{
			Name:  name,
			Value: fmt.Sprintf("%d/%d online", d.Online, d.Total),
			Short: true,
		})
	}

	return FormattedEvent{
		Title:    "Wallboard Digest",
		Body:     strings.Join(bodyLines, "\n"),
		Severity: "info",
		Color:    ColorInfo,
		Fields:   fields,
	}
}
