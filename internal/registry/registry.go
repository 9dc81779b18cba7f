// Package registry owns the set of known agents and their presence state machine.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/wallboard/internal/models"
)

// Outcome tells a caller whether a login created the agent or updated it.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	}
	return "unknown"
}

// LoginRequest carries the fields supplied with a login. Empty strings and a
// nil Skills slice mean "not supplied".
type LoginRequest struct {
	Code       string
	Name       string
	Skills     []string
	Supervisor string
	Department string
	IPAddress  string
}

// LoginResult is the agent after login plus how it got there.
type LoginResult struct {
	Agent     models.Agent
	Outcome   Outcome
	SessionID string
}

// StatusChange describes an applied status transition.
type StatusChange struct {
	Agent  models.Agent
	From   models.Status
	To     models.Status
	Reason string
	At     time.Time
}

// Filter narrows List. Zero-valued fields do not filter.
type Filter struct {
	Status     models.Status
	Supervisor string
	Department string
	Skills     []string // any-of, exact match
}

func (f Filter) match(a *models.Agent) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Supervisor != "" && a.Supervisor != f.Supervisor {
		return false
	}
	if f.Department != "" && a.Department != f.Department {
		return false
	}
	if len(f.Skills) > 0 && !a.HasAnySkill(f.Skills) {
		return false
	}
	return true
}

// Registry is the in-memory instance of record for agents. All methods are
// safe for concurrent use; every read-modify-write holds the write lock for
// its whole sequence.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*models.Agent

	now          func() time.Time
	newSessionID func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(gen func() string) Option {
	return func(r *Registry) { r.newSessionID = gen }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		agents:       make(map[string]*models.Agent),
		now:          time.Now,
		newSessionID: func() string { return "session_" + uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Login upserts the agent and moves it to Available with a fresh session.
func (r *Registry) Login(req LoginRequest) (LoginResult, error) {
	if req.Code == "" {
		return LoginResult{}, fmt.Errorf("registry: login: code is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	outcome := OutcomeUpdated
	a, ok := r.agents[req.Code]
	if !ok {
		outcome = OutcomeCreated
		a = &models.Agent{
			Code:             req.Code,
			Name:             req.Name,
			Status:           models.StatusOffline,
			Skills:           slices.Clone(req.Skills),
			Supervisor:       req.Supervisor,
			Department:       req.Department,
			LastStatusChange: now,
		}
		if a.Name == "" {
			a.Name = req.Code
		}
		if a.Skills == nil {
			a.Skills = []string{}
		}
		if a.Supervisor == "" {
			a.Supervisor = models.DefaultSupervisor
		}
		if a.Department == "" {
			a.Department = models.DefaultDepartment
		}
		r.agents[req.Code] = a
	} else {
		if req.Name != "" {
			a.Name = req.Name
		}
		if req.Skills != nil {
			a.Skills = slices.Clone(req.Skills)
		}
		if req.Supervisor != "" {
			a.Supervisor = req.Supervisor
		}
		if req.Department != "" {
			a.Department = req.Department
		}
	}

	sessionID := r.newSessionID()
	loginAt := now
	a.Status = models.StatusAvailable
	a.LoginTime = &loginAt
	a.LogoutTime = nil
	a.SessionID = sessionID
	a.IPAddress = req.IPAddress
	a.LastActivity = now

	return LoginResult{Agent: a.Clone(), Outcome: outcome, SessionID: sessionID}, nil
}

// Logout moves the agent to Offline and clears its session.
func (r *Registry) Logout(code string) (models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[code]
	if !ok {
		return models.Agent{}, fmt.Errorf("registry: logout %s: %w", code, models.ErrNotFound)
	}
	now := r.now()
	a.Status = models.StatusOffline
	a.LogoutTime = &now
	a.SessionID = ""
	a.LastActivity = now
	return a.Clone(), nil
}

// SetStatus replaces the agent's status. An empty reason clears any prior one.
// Unknown codes fail with ErrNotFound and statuses outside the enum with
// ErrInvalidStatus; neither leaves a partial update.
func (r *Registry) SetStatus(code string, status models.Status, reason string) (StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[code]
	if !ok {
		return StatusChange{}, fmt.Errorf("registry: set status %s: %w", code, models.ErrNotFound)
	}
	if !status.Valid() {
		return StatusChange{}, fmt.Errorf("registry: set status %s to %q: %w", code, status, models.ErrInvalidStatus)
	}

	now := r.now()
	from := a.Status
	a.Status = status
	a.StatusReason = strings.TrimSpace(reason)
	a.LastStatusChange = now
	a.LastActivity = now

	return StatusChange{
		Agent:  a.Clone(),
		From:   from,
		To:     status,
		Reason: a.StatusReason,
		At:     now,
	}, nil
}

// RecordCall adds one completed call of the given duration to the agent's
// cumulative counters.
func (r *Registry) RecordCall(code string, seconds int) (models.Agent, error) {
	if seconds < 0 {
		return models.Agent{}, fmt.Errorf("registry: record call %s: negative duration %d", code, seconds)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[code]
	if !ok {
		return models.Agent{}, fmt.Errorf("registry: record call %s: %w", code, models.ErrNotFound)
	}
	a.TotalCalls++
	a.TotalCallTime += seconds
	a.LastActivity = r.now()
	return a.Clone(), nil
}

// Create inserts an agent built by an administrator. Missing status,
// supervisor and department take their defaults.
func (r *Registry) Create(agent models.Agent) (models.Agent, error) {
	if agent.Code == "" {
		return models.Agent{}, fmt.Errorf("registry: create: code is required")
	}
	if agent.Status == "" {
		agent.Status = models.StatusOffline
	}
	if !agent.Status.Valid() {
		return models.Agent{}, fmt.Errorf("registry: create %s with status %q: %w", agent.Code, agent.Status, models.ErrInvalidStatus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.Code]; exists {
		return models.Agent{}, fmt.Errorf("registry: create %s: %w", agent.Code, models.ErrAlreadyExists)
	}

	now := r.now()
	a := agent.Clone()
	if a.Name == "" {
		a.Name = a.Code
	}
	if a.Supervisor == "" {
		a.Supervisor = models.DefaultSupervisor
	}
	if a.Department == "" {
		a.Department = models.DefaultDepartment
	}
	if a.LastStatusChange.IsZero() {
		a.LastStatusChange = now
	}
	if a.LastActivity.IsZero() {
		a.LastActivity = now
	}
	r.agents[a.Code] = &a
	return a.Clone(), nil
}

// Delete removes the agent permanently. Messages addressed to it are kept.
func (r *Registry) Delete(code string) (models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[code]
	if !ok {
		return models.Agent{}, fmt.Errorf("registry: delete %s: %w", code, models.ErrNotFound)
	}
	delete(r.agents, code)
	return a.Clone(), nil
}

// Get returns a copy of one agent.
func (r *Registry) Get(code string) (models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[code]
	if !ok {
		return models.Agent{}, fmt.Errorf("registry: get %s: %w", code, models.ErrNotFound)
	}
	return a.Clone(), nil
}

// AgentName returns the display name for code, used to resolve message
// recipients.
func (r *Registry) AgentName(code string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[code]
	if !ok {
		return "", false
	}
	return a.Name, true
}

// List returns the agents matching f, ordered by code.
func (r *Registry) List(f Filter) []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if f.match(a) {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Agent) int { return strings.Compare(a.Code, b.Code) })
	return out
}

// Snapshot returns every agent, ordered by code.
func (r *Registry) Snapshot() []models.Agent {
	return r.List(Filter{})
}

// Len returns the number of known agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
