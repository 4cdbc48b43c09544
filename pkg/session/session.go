package session

import "time"

// Status describes who owns the conversation.
type Status string

const (
	// StatusActive means the automated system replies to the user.
	StatusActive Status = "ACTIVE"
	// StatusHandover is terminal for the bot: a human owns the conversation
	// until the status is externally reset.
	StatusHandover Status = "HANDOVER"
)

// Turn roles as replayed to the completion model.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single conversation turn. Insertion order is significant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the per-user conversation state.
type Session struct {
	Status          Status            `json:"status"`
	Greeted         bool              `json:"greeted"`
	LastIntent      string            `json:"lastIntent,omitempty"`
	History         []Turn            `json:"history"`
	TempData        map[string]string `json:"tempData,omitempty"`
	Turns           int               `json:"turns"`
	LastSeen        time.Time         `json:"lastSeen"`
	IsReturningUser bool              `json:"isReturningUser"`
}

// newSession builds the default entity shape. Pure, no side effects.
func newSession(now time.Time) *Session {
	return &Session{
		Status:   StatusActive,
		History:  []Turn{},
		TempData: map[string]string{},
		LastSeen: now,
	}
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (s *Session) Clone() *Session {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	if s.TempData != nil {
		c.TempData = make(map[string]string, len(s.TempData))
		for k, v := range s.TempData {
			c.TempData[k] = v
		}
	}
	return &c
}

// expired reports whether the session has aged past the inactivity timeout.
func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeen) > timeout
}

// Delta is a field-by-field shallow update. Nil fields leave the stored value
// unchanged; non-nil fields win on conflict. LastSeen and Turns are always
// store-computed and cannot be set through a Delta.
type Delta struct {
	Status          *Status
	Greeted         *bool
	LastIntent      *string
	History         []Turn
	TempData        map[string]string
	IsReturningUser *bool
}

// apply merges d into s, refreshes LastSeen and increments Turns relative to
// the current stored value.
func (s *Session) apply(d Delta, now time.Time) {
	if d.Status != nil {
		s.Status = *d.Status
	}
	if d.Greeted != nil {
		s.Greeted = *d.Greeted
	}
	if d.LastIntent != nil {
		s.LastIntent = *d.LastIntent
	}
	if d.History != nil {
		s.History = make([]Turn, len(d.History))
		copy(s.History, d.History)
	}
	if d.TempData != nil {
		s.TempData = make(map[string]string, len(d.TempData))
		for k, v := range d.TempData {
			s.TempData[k] = v
		}
	}
	if d.IsReturningUser != nil {
		s.IsReturningUser = *d.IsReturningUser
	}
	s.LastSeen = now
	s.Turns++
}

// Bool returns a pointer to b, for building Deltas.
func Bool(b bool) *bool { return &b }

// String returns a pointer to v, for building Deltas.
func String(v string) *string { return &v }

// StatusOf returns a pointer to st, for building Deltas.
func StatusOf(st Status) *Status { return &st }

// TrimLeadingModelTurns drops model-authored turns from the front of history.
// The completion model rejects a history that opens with a model turn, so the
// caller strips them before replay; relative order of the rest is preserved.
func TrimLeadingModelTurns(history []Turn) []Turn {
	i := 0
	for i < len(history) && history[i].Role == RoleModel {
		i++
	}
	return history[i:]
}

// CapHistory evicts the oldest turns so at most max remain, preserving
// relative order. A non-positive max leaves history untouched.
func CapHistory(history []Turn, max int) []Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
