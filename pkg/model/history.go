package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxHistoryEntries is the upper bound of a persisted history list
const MaxHistoryEntries = 50

// HistoryKey is the persistence key holding the serialized history list
const HistoryKey = "imageHistory"

type HistoryEntryID string

// NewHistoryEntryID generates a new unique HistoryEntryID
func NewHistoryEntryID() HistoryEntryID {
	return HistoryEntryID(uuid.New().String())
}

// HistoryEntry represents one past image generation. Field names follow the
// persisted JSON schema.
type HistoryEntry struct {
	ID        HistoryEntryID `json:"id"`
	ImageURL  string         `json:"imageUrl"`
	Prompt    string         `json:"prompt"`
	Timestamp Timestamp      `json:"timestamp"`
}

// TimestampLayout is the ISO 8601 form written for new entries, e.g.
// "2024-11-14T22:13:20.000Z"
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is the creation time of a history entry as persisted. The text is
// kept as read so that entries written by other clients survive unchanged; use
// Time to interpret it.
type Timestamp string

// NewTimestamp formats t in UTC with TimestampLayout
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(TimestampLayout))
}

// Time parses the timestamp. ok is false if it is not an RFC 3339 time.
func (x Timestamp) Time() (t time.Time, ok bool) {
	parsed, err := time.Parse(time.RFC3339Nano, string(x))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// UnmarshalJSON accepts any JSON value. Strings are kept verbatim, null becomes
// empty and other values keep their JSON text.
func (x *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*x = Timestamp(s)
		return nil
	}
	if string(data) == "null" {
		*x = ""
		return nil
	}
	*x = Timestamp(data)
	return nil
}

// GenerationRequest is a single submitted prompt. It is never persisted.
type GenerationRequest struct {
	Prompt      string
	SubmittedAt time.Time
}
