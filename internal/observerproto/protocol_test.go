package observerproto

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"astra.mc/internal/sim/world"
)

func TestTickMsg_MatchesSchema(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "observer_tick.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	entry := world.TickLogEntry{
		Tick:         12,
		WorldTime:    240,
		Joins:        []world.RecordedJoin{{Name: "alice", EntityID: 1}},
		Leaves:       []string{"bob"},
		Intents:      3,
		BlockChanges: 1,
		Players:      1,
		StepMS:       0.4,
	}
	audit := []world.AuditEntry{{Tick: 12, Actor: 1, Cause: "player", Pos: [3]int{1, 1, 1}, To: "stone"}}
	msg := NewTickMsg(entry, audit)

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewTickMsg_CopiesSlices(t *testing.T) {
	entry := world.TickLogEntry{Leaves: []string{"bob"}, Joins: []world.RecordedJoin{{Name: "a", EntityID: 1}}}
	msg := NewTickMsg(entry, nil)
	entry.Leaves[0] = "mutated"
	entry.Joins[0].Name = "mutated"
	if msg.Leaves[0] != "bob" || msg.Joins[0].Name != "a" {
		t.Fatalf("message shares buffers with the entry: %+v", msg)
	}
	if msg.Type != TypeTick || msg.ProtocolVersion != Version {
		t.Fatalf("header=%q/%q", msg.Type, msg.ProtocolVersion)
	}
}
