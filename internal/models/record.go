package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentVersion is the envelope version written by this code. Records
// without an envelope are version 0.
const CurrentVersion = 1

type Kind string

const (
	KindUser    Kind = "user"
	KindThreads Kind = "threads"
	KindHistory Kind = "history"
	KindMemory  Kind = "memory"
)

var (
	ErrFutureVersion = errors.New("record version is newer than supported")
	ErrKindMismatch  = errors.New("record kind mismatch")
)

// Versioned records apply one upgrade step per version gap after decoding.
type Versioned interface {
	UpgradeFrom(version int)
}

type envelope struct {
	Version int             `json:"v"`
	Kind    Kind            `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Wrap serializes v inside a current-version envelope.
func Wrap(kind Kind, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", kind, err)
	}
	return json.Marshal(envelope{Version: CurrentVersion, Kind: kind, Data: data})
}

// Unwrap decodes raw into out and upgrades it to CurrentVersion. It returns
// the version the record was stored at.
func Unwrap(kind Kind, raw []byte, out Versioned) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty %s record", kind)
	}

	version := 0
	payload := raw
	if raw[0] == '{' {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return 0, fmt.Errorf("decode %s envelope: %w", kind, err)
		}
		if len(env.Data) > 0 {
			if env.Kind != "" && env.Kind != kind {
				return 0, fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, kind, env.Kind)
			}
			version = env.Version
			payload = env.Data
		}
	}
	if version > CurrentVersion {
		return version, fmt.Errorf("%w: %s v%d", ErrFutureVersion, kind, version)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return version, fmt.Errorf("decode %s v%d: %w", kind, version, err)
	}
	out.UpgradeFrom(version)
	return version, nil
}

// ExportBundle is the downloadable aggregate of everything stored for a user.
type ExportBundle struct {
	User       *User                `json:"user"`
	Threads    []Thread             `json:"threads"`
	History    map[string][]Message `json:"history"`
	ExportedAt time.Time            `json:"exportedAt"`
	Version    string               `json:"version"`
}
