package models

import (
	"encoding/json"
	"math"
	"slices"
	"time"
)

// Default attribute values for agents created by login.
const (
	DefaultSupervisor = "S001"
	DefaultDepartment = "General"
)

// Agent is a call-center worker tracked by code and presence status.
type Agent struct {
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Status           Status     `json:"status"`
	LoginTime        *time.Time `json:"loginTime"`
	LogoutTime       *time.Time `json:"logoutTime"`
	LastStatusChange time.Time  `json:"lastStatusChange"`
	LastActivity     time.Time  `json:"lastActivity"`
	StatusReason     string     `json:"statusReason,omitempty"`
	TotalCalls       int        `json:"totalCalls"`
	TotalCallTime    int        `json:"totalCallTime"` // seconds
	Skills           []string   `json:"skills"`
	Supervisor       string     `json:"supervisor"`
	Department       string     `json:"department"`

	// Captured at login; never exposed to API clients.
	SessionID string `json:"-"`
	IPAddress string `json:"-"`
}

// AverageCallTime returns the rounded mean call duration in seconds, or 0
// when the agent has taken no calls.
func (a Agent) AverageCallTime() int {
	return AverageSeconds(a.TotalCallTime, a.TotalCalls)
}

// IsOnline reports whether the agent is in any status other than Offline.
func (a Agent) IsOnline() bool {
	return a.Status != StatusOffline
}

// HasAnySkill reports whether the agent has at least one of skills.
// Matching is exact and case-sensitive.
func (a Agent) HasAnySkill(skills []string) bool {
	for _, s := range skills {
		if slices.Contains(a.Skills, s) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the owning registry.
func (a Agent) Clone() Agent {
	c := a
	c.Skills = slices.Clone(a.Skills)
	if c.Skills == nil {
		c.Skills = []string{}
	}
	if a.LoginTime != nil {
		t := *a.LoginTime
		c.LoginTime = &t
	}
	if a.LogoutTime != nil {
		t := *a.LogoutTime
		c.LogoutTime = &t
	}
	return c
}

// MarshalJSON adds the derived averageCallTime and isOnline fields.
func (a Agent) MarshalJSON() ([]byte, error) {
	type plain Agent
	return json.Marshal(struct {
		plain
		AverageCallTime int  `json:"averageCallTime"`
		IsOnline        bool `json:"isOnline"`
	}{
		plain:           plain(a),
		AverageCallTime: a.AverageCallTime(),
		IsOnline:        a.IsOnline(),
	})
}

// AverageSeconds returns round(total/count), or 0 when count is not positive.
func AverageSeconds(total, count int) int {
	if count <= 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(count)))
}
