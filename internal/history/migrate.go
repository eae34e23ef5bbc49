package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/trishield/internal/model"
)

// legacyVerdict is the nested verdict object older records carry
type legacyVerdict struct {
	URL     string   `json:"url"`
	Verdict string   `json:"verdict"`
	Score   *float64 `json:"score"`
}

type rawEntry struct {
	URL     string          `json:"url"`
	Verdict json.RawMessage `json:"verdict"`
	Score   *float64        `json:"score"`
	At      float64         `json:"at"`
}

// MigrateEntries normalizes stored records to the flat shape. Records whose
// verdict is already a string pass through untouched, so running it twice
// changes nothing. changed reports whether any record was rewritten.
func MigrateEntries(raw []json.RawMessage, now time.Time) (entries []model.HistoryEntry, changed bool, err error) {
	entries = make([]model.HistoryEntry, 0, len(raw))

	for i, msg := range raw {
		var r rawEntry
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, false, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}

		if isJSONString(r.Verdict) {
			var flat model.HistoryEntry
			if err := json.Unmarshal(msg, &flat); err != nil {
				return nil, false, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
			}
			entries = append(entries, flat)
			continue
		}

		changed = true
		entries = append(entries, flatten(r, now))
	}

	return entries, changed, nil
}

func flatten(r rawEntry, now time.Time) model.HistoryEntry {
	var nested legacyVerdict
	// a non-object verdict (null, number) just contributes nothing
	_ = json.Unmarshal(r.Verdict, &nested)

	e := model.HistoryEntry{
		URL:     r.URL,
		Verdict: nested.Verdict,
		At:      int64(r.At),
	}
	if e.URL == "" {
		e.URL = nested.URL
	}
	if e.Verdict == "" {
		e.Verdict = string(model.LabelSafe)
	}
	switch {
	case nested.Score != nil:
		e.Score = *nested.Score
	case r.Score != nil:
		e.Score = *r.Score
	}
	if e.At == 0 {
		e.At = now.UnixMilli()
	}
	return e
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}
