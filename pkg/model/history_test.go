package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/promptshot/pkg/model"
)

func TestNewTimestamp(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := model.NewTimestamp(time.Date(2024, 11, 15, 7, 13, 20, 0, jst))
	gt.Equal(t, ts, model.Timestamp("2024-11-14T22:13:20.000Z"))

	parsed, ok := ts.Time()
	gt.True(t, ok)
	gt.True(t, parsed.Equal(time.Date(2024, 11, 14, 22, 13, 20, 0, time.UTC)))
}

func TestTimestampUnmarshal(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expect model.Timestamp
		valid  bool
	}{
		{"iso with millis", `"2024-11-14T22:13:20.000Z"`, "2024-11-14T22:13:20.000Z", true},
		{"iso without millis", `"2024-11-14T22:13:20Z"`, "2024-11-14T22:13:20Z", true},
		{"empty", `""`, "", false},
		{"free text", `"yesterday"`, "yesterday", false},
		{"null", `null`, "", false},
		{"number", `1700000000000`, "1700000000000", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var ts model.Timestamp
			gt.NoError(t, json.Unmarshal([]byte(tc.input), &ts))
			gt.Equal(t, ts, tc.expect)

			_, ok := ts.Time()
			gt.Equal(t, ok, tc.valid)
		})
	}
}

func TestHistoryEntryKeepsTimestampText(t *testing.T) {
	raw := `{"id":"1","imageUrl":"https://example.com/a.jpeg","prompt":"cat","timestamp":"2024-11-14T22:13:20.000Z"}`

	var entry model.HistoryEntry
	gt.NoError(t, json.Unmarshal([]byte(raw), &entry))

	out, err := json.Marshal(entry)
	gt.NoError(t, err)
	gt.Equal(t, string(out), raw)
}
