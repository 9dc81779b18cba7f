package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestEventRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(EventRecord{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "Type", "not null")
	assertGormTag(t, typ, "Type", "index")
	assertGormTag(t, typ, "AgentCode", "size:16")
	assertGormTag(t, typ, "MessageID", "index")
	assertGormTag(t, typ, "Payload", "type:text")
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"Available", StatusAvailable, true},
		{"Active", StatusActive, true},
		{"Wrap Up", StatusWrapUp, true},
		{"Not Ready", StatusNotReady, true},
		{"Offline", StatusOffline, true},
		{"available", "", false},
		{"WrapUp", "", false},
		{"Busy", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAllStatuses_AreValid(t *testing.T) {
	all := AllStatuses()
	assert.Len(t, all, 5)
	for _, s := range all {
		assert.True(t, s.Valid(), "status %q", s)
	}
}

func TestAverageCallTime(t *testing.T) {
	tests := []struct {
		name       string
		calls, sec int
		want       int
	}{
		{"no calls", 0, 0, 0},
		{"no calls with time", 0, 120, 0},
		{"exact", 4, 400, 100},
		{"rounds down", 3, 100, 33},
		{"rounds half up", 2, 5, 3},
		{"rounds up", 3, 200, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Agent{TotalCalls: tt.calls, TotalCallTime: tt.sec}
			assert.Equal(t, tt.want, a.AverageCallTime())
		})
	}
}

func TestAgent_IsOnline(t *testing.T) {
	for _, s := range AllStatuses() {
		a := Agent{Status: s}
		assert.Equal(t, s != StatusOffline, a.IsOnline(), "status %q", s)
	}
}

func TestAgent_HasAnySkill(t *testing.T) {
	a := Agent{Skills: []string{"English", "Sales"}}
	assert.True(t, a.HasAnySkill([]string{"Thai", "Sales"}))
	assert.False(t, a.HasAnySkill([]string{"sales"}), "matching is case-sensitive")
	assert.False(t, a.HasAnySkill(nil))
}

func TestAgent_CloneIsDeep(t *testing.T) {
	login := time.Now()
	a := Agent{Code: "A001", Skills: []string{"English"}, LoginTime: &login}
	c := a.Clone()
	c.Skills[0] = "Thai"
	*c.LoginTime = login.Add(time.Hour)

	assert.Equal(t, "English", a.Skills[0])
	assert.True(t, a.LoginTime.Equal(login))
}

func TestAgent_MarshalJSON(t *testing.T) {
	a := Agent{
		Code:          "A001",
		Name:          "John Doe",
		Status:        StatusActive,
		TotalCalls:    2,
		TotalCallTime: 300,
		Skills:        []string{"English"},
		SessionID:     "secret-session",
		IPAddress:     "10.0.0.1",
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "A001", out["code"])
	assert.Equal(t, float64(150), out["averageCallTime"])
	assert.Equal(t, true, out["isOnline"])
	assert.NotContains(t, out, "SessionID")
	assert.NotContains(t, string(data), "secret-session")
	assert.NotContains(t, string(data), "10.0.0.1")
}

func TestRecipient(t *testing.T) {
	b := Broadcast()
	assert.True(t, b.IsBroadcast())
	assert.Equal(t, "all", b.String())
	assert.True(t, b.Includes("A001"))
	assert.True(t, b.Includes("Z999"))

	d := Direct("A001")
	assert.False(t, d.IsBroadcast())
	assert.Equal(t, "A001", d.Code())
	assert.True(t, d.Includes("A001"))
	assert.False(t, d.Includes("A002"))

	assert.True(t, Recipient{}.IsZero())
	assert.False(t, d.IsZero())
}

func TestParseRecipient(t *testing.T) {
	r, err := ParseRecipient("all")
	require.NoError(t, err)
	assert.True(t, r.IsBroadcast())

	r, err = ParseRecipient("A002")
	require.NoError(t, err)
	assert.Equal(t, Direct("A002"), r)

	_, err = ParseRecipient("")
	assert.Error(t, err)
}

func TestRecipient_JSON(t *testing.T) {
	msg := Message{ID: 7, To: Broadcast()}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"to":"all"`)

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":8,"to":"A003"}`), &decoded))
	assert.Equal(t, Direct("A003"), decoded.To)
}

func TestPriority_Rank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityUrgent.Rank())
	assert.False(t, Priority("critical").Valid())
}

func TestMessage_IsHighPriority(t *testing.T) {
	assert.True(t, Message{Priority: PriorityHigh}.IsHighPriority())
	assert.True(t, Message{Priority: PriorityUrgent}.IsHighPriority())
	assert.False(t, Message{Priority: PriorityNormal}.IsHighPriority())
}

func TestMessageType_Valid(t *testing.T) {
	for _, mt := range []MessageType{TypeInstruction, TypeNotification, TypeAlert, TypeInfo} {
		assert.True(t, mt.Valid())
	}
	assert.False(t, MessageType("memo").Valid())
}
