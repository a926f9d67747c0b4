package graph

import (
	"strings"
	"testing"
)

func TestParseSnapshot_MergesDirections(t *testing.T) {
	snapshot := `{
		"channels": [
			{"source": "alice", "destination": "bob", "short_channel_id": "1x1x1", "satoshis": 1000, "active": true},
			{"source": "bob", "destination": "alice", "short_channel_id": "1x1x1", "satoshis": 1000, "active": true}
		]
	}`

	channels, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 merged channel, got %d", len(channels))
	}

	ch := channels[0]
	if ch.Source != "alice" || ch.Destination != "bob" {
		t.Errorf("expected endpoints alice-bob, got %s-%s", ch.Source, ch.Destination)
	}
	if ch.Capacity != 1000 {
		t.Errorf("expected capacity 1000, got %d", ch.Capacity)
	}
	if !ch.Dir0Enabled || !ch.Dir1Enabled {
		t.Error("both directions must be enabled")
	}
}

func TestParseSnapshot_MissingDirectionDisabled(t *testing.T) {
	// Only the bob->alice record exists: dir1 of the alice-bob channel.
	snapshot := `{
		"channels": [
			{"source": "bob", "destination": "alice", "short_channel_id": "2x2x2", "satoshis": 500, "active": true}
		]
	}`

	channels, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
	ch := channels[0]
	if ch.Source != "alice" || ch.Destination != "bob" {
		t.Errorf("source must be the lower node ID, got %s-%s", ch.Source, ch.Destination)
	}
	if ch.Dir0Enabled {
		t.Error("dir0 was not in the snapshot and must be disabled")
	}
	if !ch.Dir1Enabled {
		t.Error("dir1 was active in the snapshot")
	}
}

func TestParseSnapshot_InactiveDirection(t *testing.T) {
	snapshot := `{
		"channels": [
			{"source": "a", "destination": "b", "short_channel_id": "3x3x3", "satoshis": 100, "active": true},
			{"source": "b", "destination": "a", "short_channel_id": "3x3x3", "satoshis": 100, "active": false}
		]
	}`

	channels, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if !channels[0].Dir0Enabled || channels[0].Dir1Enabled {
		t.Errorf("expected dir0 enabled and dir1 disabled, got %v/%v",
			channels[0].Dir0Enabled, channels[0].Dir1Enabled)
	}
}

func TestParseSnapshot_SortedByID(t *testing.T) {
	snapshot := `{
		"channels": [
			{"source": "a", "destination": "b", "short_channel_id": "9x9x9", "satoshis": 100, "active": true},
			{"source": "a", "destination": "c", "short_channel_id": "1x1x1", "satoshis": 100, "active": true}
		]
	}`

	channels, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if channels[0].ID != "1x1x1" || channels[1].ID != "9x9x9" {
		t.Errorf("channels not sorted by ID: %s, %s", channels[0].ID, channels[1].ID)
	}
}

func TestParseSnapshot_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed json", `{"channels": [`},
		{"self loop", `{"channels": [{"source": "a", "destination": "a", "short_channel_id": "1x1x1", "satoshis": 10, "active": true}]}`},
		{"zero capacity", `{"channels": [{"source": "a", "destination": "b", "short_channel_id": "1x1x1", "satoshis": 0, "active": true}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSnapshot(strings.NewReader(tc.data)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}
