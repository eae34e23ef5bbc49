package model

import "time"

// HistoryEntry is the flat record persisted for every analyzed URL
type HistoryEntry struct {
	URL     string  `json:"url"`
	Verdict string  `json:"verdict"`
	Score   float64 `json:"score"`
	At      int64   `json:"at"` // Unix milliseconds
}

// Time returns the entry timestamp
func (h HistoryEntry) Time() time.Time {
	return time.UnixMilli(h.At)
}

// EntryFromVerdict flattens a verdict into a history record
func EntryFromVerdict(v Verdict) HistoryEntry {
	label := string(v.Verdict)
	if label == "" {
		label = string(LabelSafe)
	}
	at := v.At
	if at.IsZero() {
		at = time.Now()
	}
	return HistoryEntry{
		URL:     v.URL,
		Verdict: label,
		Score:   v.Score,
		At:      at.UnixMilli(),
	}
}
