package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	assert.Equal(t, StatusActive, s.Status)
	assert.False(t, s.Greeted)
	assert.Empty(t, s.LastIntent)
	assert.Empty(t, s.History)
	assert.NotNil(t, s.History)
	assert.Equal(t, 0, s.Turns)
	assert.Equal(t, now, s.LastSeen)
	assert.False(t, s.IsReturningUser)
}

func TestSession_Apply(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(5 * time.Minute)

	s := newSession(created)
	s.apply(Delta{
		Status:     StatusOf(StatusHandover),
		Greeted:    Bool(true),
		LastIntent: String("billing"),
		History:    []Turn{{Role: RoleUser, Content: "hi"}},
		TempData:   map[string]string{"k": "v"},
	}, updated)

	assert.Equal(t, StatusHandover, s.Status)
	assert.True(t, s.Greeted)
	assert.Equal(t, "billing", s.LastIntent)
	assert.Len(t, s.History, 1)
	assert.Equal(t, map[string]string{"k": "v"}, s.TempData)
	assert.Equal(t, 1, s.Turns)
	assert.Equal(t, updated, s.LastSeen)
}

func TestSession_ApplyEmptyDelta(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	s := newSession(created)
	s.Greeted = true
	s.History = []Turn{{Role: RoleUser, Content: "hi"}}

	s.apply(Delta{}, updated)

	// Turns and LastSeen move, nothing else does.
	assert.Equal(t, 1, s.Turns)
	assert.Equal(t, updated, s.LastSeen)
	assert.True(t, s.Greeted)
	assert.Len(t, s.History, 1)
	assert.Equal(t, StatusActive, s.Status)
}

func TestSession_ApplyNeverDecrementsTurns(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	for i := 1; i <= 5; i++ {
		s.apply(Delta{}, now.Add(time.Duration(i)*time.Second))
		assert.Equal(t, i, s.Turns)
	}
}

func TestSession_Clone(t *testing.T) {
	s := newSession(time.Now())
	s.History = []Turn{{Role: RoleUser, Content: "hi"}}
	s.TempData = map[string]string{"k": "v"}

	c := s.Clone()
	c.History[0].Content = "changed"
	c.TempData["k"] = "changed"
	c.Status = StatusHandover

	assert.Equal(t, "hi", s.History[0].Content)
	assert.Equal(t, "v", s.TempData["k"])
	assert.Equal(t, StatusActive, s.Status)
}

func TestTrimLeadingModelTurns(t *testing.T) {
	tests := []struct {
		name    string
		history []Turn
		want    []Turn
	}{
		{
			name:    "empty",
			history: []Turn{},
			want:    []Turn{},
		},
		{
			name: "starts with user",
			history: []Turn{
				{Role: RoleUser, Content: "a"},
				{Role: RoleModel, Content: "b"},
			},
			want: []Turn{
				{Role: RoleUser, Content: "a"},
				{Role: RoleModel, Content: "b"},
			},
		},
		{
			name: "leading model turns stripped",
			history: []Turn{
				{Role: RoleModel, Content: "a"},
				{Role: RoleModel, Content: "b"},
				{Role: RoleUser, Content: "c"},
				{Role: RoleModel, Content: "d"},
			},
			want: []Turn{
				{Role: RoleUser, Content: "c"},
				{Role: RoleModel, Content: "d"},
			},
		},
		{
			name: "all model turns",
			history: []Turn{
				{Role: RoleModel, Content: "a"},
			},
			want: []Turn{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimLeadingModelTurns(tt.history)
			require.Equal(t, len(tt.want), len(got))
			for i := range tt.want {
				assert.Equal(t, tt.want[i], got[i])
			}
		})
	}
}

func TestCapHistory(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "1"},
		{Role: RoleModel, Content: "2"},
		{Role: RoleUser, Content: "3"},
		{Role: RoleModel, Content: "4"},
	}

	capped := CapHistory(history, 2)
	require.Len(t, capped, 2)
	assert.Equal(t, "3", capped[0].Content)
	assert.Equal(t, "4", capped[1].Content)

	assert.Len(t, CapHistory(history, 10), 4)
	assert.Len(t, CapHistory(history, 0), 4)
	assert.Len(t, CapHistory(history, -1), 4)
}
