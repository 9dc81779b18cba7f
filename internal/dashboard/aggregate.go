// Package dashboard derives wallboard statistics from registry and message
// snapshots. Nothing here mutates or caches; every figure is recomputed from
// the state at call time.
package dashboard

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/zulandar/wallboard/internal/models"
)

// TopPerformerCount caps PerformanceReport.TopPerformers.
const TopPerformerCount = 5

// AgentSource yields a copy of every registered agent.
type AgentSource interface {
	Snapshot() []models.Agent
}

// MessageSource yields a copy of every stored message.
type MessageSource interface {
	Snapshot() []models.Message
}

// Aggregator binds the pure compute functions to live sources.
type Aggregator struct {
	Agents   AgentSource
	Messages MessageSource
	Now      func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Stats computes the headline dashboard numbers.
func (a *Aggregator) Stats() Stats {
	return ComputeStats(a.Agents.Snapshot(), a.Messages.Snapshot(), a.now())
}

// Performance computes per-agent productivity.
func (a *Aggregator) Performance() PerformanceReport {
	return ComputePerformance(a.Agents.Snapshot(), a.now())
}

// Activity builds the recent activity feed, newest first.
func (a *Aggregator) Activity(limit int) ActivityFeed {
	return RecentActivity(a.Agents.Snapshot(), a.Messages.Snapshot(), limit)
}

// AgentCounts tallies agents by presence.
type AgentCounts struct {
	Total     int `json:"total"`
	Online    int `json:"online"`
	Available int `json:"available"`
	Active    int `json:"active"`
	WrapUp    int `json:"wrapUp"`
	NotReady  int `json:"notReady"`
	Offline   int `json:"offline"`
}

// MessageCounts tallies stored messages.
type MessageCounts struct {
	Total        int `json:"total"`
	Today        int `json:"today"`
	Unread       int `json:"unread"`
	HighPriority int `json:"high_priority"`
}

// PerformanceStats summarises call handling across online agents.
type PerformanceStats struct {
	TotalCalls      int `json:"totalCalls"`
	AverageCallTime int `json:"averageCallTime"` // seconds
	CallsPerAgent   int `json:"callsPerAgent"`
	ActiveRate      int `json:"activeRate"` // percent of agents online
}

// DepartmentStats is one department's rollup.
type DepartmentStats struct {
	Total     int `json:"total"`
	Online    int `json:"online"`
	Available int `json:"available"`
	Active    int `json:"active"`
}

// Stats is the full dashboard statistics view.
type Stats struct {
	Agents      AgentCounts                `json:"agents"`
	Messages    MessageCounts              `json:"messages"`
	Performance PerformanceStats           `json:"performance"`
	Departments map[string]DepartmentStats `json:"departments"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// ComputeStats derives Stats from the given snapshots. "Today" starts at
// local midnight in now's location.
func ComputeStats(agents []models.Agent, messages []models.Message, now time.Time) Stats {
	st := Stats{
		Departments: make(map[string]DepartmentStats),
		LastUpdated: now,
	}

	var onlineCalls, onlineCallTime int
	for _, ag := range agents {
		st.Agents.Total++
		dept := st.Departments[ag.Department]
		dept.Total++

		if ag.IsOnline() {
			st.Agents.Online++
			dept.Online++
			onlineCalls += ag.TotalCalls
			onlineCallTime += ag.TotalCallTime
		}
		switch ag.Status {
		case models.StatusAvailable:
			st.Agents.Available++
			dept.Available++
		case models.StatusActive:
			st.Agents.Active++
			dept.Active++
		case models.StatusWrapUp:
			st.Agents.WrapUp++
		case models.StatusNotReady:
			st.Agents.NotReady++
		case models.StatusOffline:
			st.Agents.Offline++
		}
		st.Departments[ag.Department] = dept
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, m := range messages {
		st.Messages.Total++
		if !m.Timestamp.Before(midnight) {
			st.Messages.Today++
		}
		if !m.Read {
			st.Messages.Unread++
		}
		if m.IsHighPriority() {
			st.Messages.HighPriority++
		}
	}

	st.Performance.TotalCalls = onlineCalls
	if st.Agents.Online > 0 {
		st.Performance.AverageCallTime = models.AverageSeconds(onlineCallTime, max(onlineCalls, 1))
		st.Performance.CallsPerAgent = models.AverageSeconds(onlineCalls, st.Agents.Online)
	}
	if st.Agents.Total > 0 {
		st.Performance.ActiveRate = models.AverageSeconds(st.Agents.Online*100, st.Agents.Total)
	}
	return st
}

// AgentPerformance is one agent's row in the performance report.
type AgentPerformance struct {
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Status          models.Status `json:"status"`
	Department      string        `json:"department"`
	TotalCalls      int           `json:"totalCalls"`
	AverageCallTime int           `json:"averageCallTime"`
	LoginTime       *time.Time    `json:"loginTime"`
	LastActivity    time.Time     `json:"lastActivity"`
	IsOnline        bool          `json:"isOnline"`
	Productivity    float64       `json:"productivity"` // calls per hour
}

// PerformanceSummary aggregates the report.
type PerformanceSummary struct {
	TotalAgents         int     `json:"totalAgents"`
	OnlineAgents        int     `json:"onlineAgents"`
	TotalCalls          int     `json:"totalCalls"`
	AverageProductivity float64 `json:"averageProductivity"`
}

// PerformanceReport lists every agent by call volume.
type PerformanceReport struct {
	AllAgents     []AgentPerformance `json:"allAgents"`
	TopPerformers []AgentPerformance `json:"topPerformers"`
	Summary       PerformanceSummary `json:"summary"`
}

// Productivity returns calls per hour since login, rounded to two decimals.
// Sessions shorter than an hour count as one hour; no calls yields 0.
func Productivity(ag models.Agent, now time.Time) float64 {
	if ag.TotalCalls <= 0 {
		return 0
	}
	login := now
	if ag.LoginTime != nil {
		login = *ag.LoginTime
	}
	hours := max(1, int(now.Sub(login)/time.Hour))
	return round2(float64(ag.TotalCalls) / float64(hours))
}

// ComputePerformance ranks agents by total calls, highest first.
func ComputePerformance(agents []models.Agent, now time.Time) PerformanceReport {
	rep := PerformanceReport{
		AllAgents:     make([]AgentPerformance, 0, len(agents)),
		TopPerformers: []AgentPerformance{},
	}
	for _, ag := range agents {
		rep.AllAgents = append(rep.AllAgents, AgentPerformance{
			Code:            ag.Code,
			Name:            ag.Name,
			Status:          ag.Status,
			Department:      ag.Department,
			TotalCalls:      ag.TotalCalls,
			AverageCallTime: ag.AverageCallTime(),
			LoginTime:       ag.LoginTime,
			LastActivity:    ag.LastActivity,
			IsOnline:        ag.IsOnline(),
			Productivity:    Productivity(ag, now),
		})
	}
	slices.SortStableFunc(rep.AllAgents, func(a, b AgentPerformance) int {
		return cmp.Compare(b.TotalCalls, a.TotalCalls)
	})

	var productivity float64
	for _, p := range rep.AllAgents {
		rep.Summary.TotalCalls += p.TotalCalls
		if !p.IsOnline {
			continue
		}
		rep.Summary.OnlineAgents++
		productivity += p.Productivity
		if len(rep.TopPerformers) < TopPerformerCount {
			rep.TopPerformers = append(rep.TopPerformers, p)
		}
	}
	rep.Summary.TotalAgents = len(rep.AllAgents)
	rep.Summary.AverageProductivity = round2(productivity / float64(max(1, rep.Summary.OnlineAgents)))
	return rep
}

// Activity kinds in the feed.
const (
	ActivityLogin        = "agent_login"
	ActivityStatusChange = "status_change"
	ActivityMessageSent  = "message_sent"
)

// Activity is one feed entry. Agent fields are set for login and status
// entries, message fields for message entries.
type Activity struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`

	AgentCode string        `json:"agentCode,omitempty"`
	AgentName string        `json:"agentName,omitempty"`
	Status    models.Status `json:"status,omitempty"`

	MessageID   uint64             `json:"messageId,omitempty"`
	From        string             `json:"from,omitempty"`
	FromName    string             `json:"fromName,omitempty"`
	To          string             `json:"to,omitempty"`
	ToName      string             `json:"toName,omitempty"`
	Priority    models.Priority    `json:"priority,omitempty"`
	MessageType models.MessageType `json:"messageType,omitempty"`
}

// ActivityFeed is the truncated feed plus its untruncated size.
type ActivityFeed struct {
	Activities      []Activity `json:"activities"`
	Count           int        `json:"count"`
	TotalActivities int        `json:"totalActivities"`
}

// RecentActivity synthesises the feed from agent timestamps and messages,
// newest first. limit <= 0 returns every entry.
func RecentActivity(agents []models.Agent, messages []models.Message, limit int) ActivityFeed {
	all := make([]Activity, 0, 2*len(agents)+len(messages))

	for _, ag := range agents {
		if ag.LoginTime != nil {
			all = append(all, Activity{
				Type:        ActivityLogin,
				Timestamp:   *ag.LoginTime,
				Description: fmt.Sprintf("%s logged in", ag.Name),
				AgentCode:   ag.Code,
				AgentName:   ag.Name,
				Status:      ag.Status,
			})
		}
		if !ag.LastStatusChange.IsZero() {
			all = append(all, Activity{
				Type:        ActivityStatusChange,
				Timestamp:   ag.LastStatusChange,
				Description: fmt.Sprintf("%s changed status to %s", ag.Name, ag.Status),
				AgentCode:   ag.Code,
				AgentName:   ag.Name,
				Status:      ag.Status,
			})
		}
	}

	for _, m := range messages {
		all = append(all, Activity{
			Type:        ActivityMessageSent,
			Timestamp:   m.Timestamp,
			Description: fmt.Sprintf("Message sent from %s to %s", m.FromName, m.ToName),
			MessageID:   m.ID,
			From:        m.From,
			FromName:    m.FromName,
			To:          m.To.String(),
			ToName:      m.ToName,
			Priority:    m.Priority,
			MessageType: m.Type,
		})
	}

	slices.SortStableFunc(all, func(a, b Activity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	feed := ActivityFeed{Activities: all, TotalActivities: len(all)}
	if limit > 0 && len(all) > limit {
		feed.Activities = all[:limit]
	}
	feed.Count = len(feed.Activities)
	return feed
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}
