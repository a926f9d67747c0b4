// Package graph builds a hop graph of a payment network from a
// listchannels snapshot and provides routing over it.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// channelDirection is one directed half of a channel as it appears in a
// clightning listchannels snapshot. Each channel shows up as up to two
// such records, one per direction.
type channelDirection struct {
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	ShortChannelID string `json:"short_channel_id"`
	Satoshis       int64  `json:"satoshis"`
	Active         bool   `json:"active"`
}

type snapshot struct {
	Channels []channelDirection `json:"channels"`
}

// Channel is a merged bidirectional view of a channel. Source is always
// the lexicographically lower node ID, so dir0 runs Source to
// Destination.
type Channel struct {
	Source      string
	Destination string
	ID          string
	Capacity    int64
	Dir0Enabled bool
	Dir1Enabled bool
}

// ParseSnapshot reads a listchannels JSON snapshot and merges the
// directed records into one Channel per short channel ID. A direction
// missing from the snapshot is treated as disabled. Channels are
// returned sorted by ID for deterministic downstream construction.
func ParseSnapshot(r io.Reader) ([]Channel, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	byID := make(map[string]*Channel)
	for _, cd := range snap.Channels {
		if cd.Source == cd.Destination {
			return nil, fmt.Errorf("channel %s connects node %s to itself", cd.ShortChannelID, cd.Source)
		}
		if cd.Satoshis <= 0 {
			return nil, fmt.Errorf("channel %s has non-positive capacity %d", cd.ShortChannelID, cd.Satoshis)
		}
		isDir0 := cd.Source < cd.Destination
		source, destination := cd.Source, cd.Destination
		if !isDir0 {
			source, destination = destination, source
		}
		ch, ok := byID[cd.ShortChannelID]
		if !ok {
			ch = &Channel{
				Source:      source,
				Destination: destination,
				ID:          cd.ShortChannelID,
				Capacity:    cd.Satoshis,
			}
			byID[cd.ShortChannelID] = ch
		}
		if isDir0 {
			ch.Dir0Enabled = cd.Active
		} else {
			ch.Dir1Enabled = cd.Active
		}
	}
	channels := make([]Channel, 0, len(byID))
	for _, ch := range byID {
		channels = append(channels, *ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })
	return channels, nil
}

// ParseSnapshotFile is ParseSnapshot over a file path.
func ParseSnapshotFile(path string) ([]Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return ParseSnapshot(f)
}
