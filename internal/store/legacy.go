package store

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
)

// legacyStamp matches the filename-safe timestamp older file records used,
// an ISO instant with ':' and '.' replaced by '-'.
var legacyStamp = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})T(\d{2})-(\d{2})-(\d{2})-(\d{3})Z$`)

// parseStamp parses an RFC3339 instant or a legacy filename-safe one.
func parseStamp(s string) (time.Time, bool) {
	if m := legacyStamp.FindStringSubmatch(s); m != nil && m[0] == s {
		s = m[1] + "T" + m[2] + ":" + m[3] + ":" + m[4] + "." + m[5] + "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// looseTime decodes RFC3339 or legacy filename-safe timestamps.
type looseTime time.Time

func (t *looseTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, ok := parseStamp(s)
	if !ok {
		return eris.Errorf("unrecognized timestamp %q", s)
	}
	*t = looseTime(v)
	return nil
}

// loosePct decodes a percentage stored as a number or a numeric string.
type loosePct struct {
	v *float64
}

func (p *loosePct) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Errorf("unrecognized pct %q", s)
	}
	p.v = &f
	return nil
}

// decodeRunLog reads a file run log, accepting the older layout without id,
// kind or finished_at. Missing fields are derived from the file id.
func decodeRunLog(data []byte, id string) (*model.RunLog, error) {
	type plain model.RunLog
	var log model.RunLog
	aux := struct {
		*plain
		StartedAt  looseTime `json:"started_at"`
		FinishedAt looseTime `json:"finished_at"`
		Pct        loosePct  `json:"pct"`
		BackupID   *string   `json:"backupId"`
	}{plain: (*plain)(&log)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}

	log.StartedAt = time.Time(aux.StartedAt)
	log.FinishedAt = time.Time(aux.FinishedAt)
	log.Pct = aux.Pct.v
	if aux.BackupID != nil {
		log.BackupID = strings.TrimSuffix(*aux.BackupID, ".json")
	}
	if log.ID == "" {
		log.ID = id
	}
	if log.Kind == "" {
		log.Kind = inferRunKind(id)
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = stampFromID(id)
	}
	if log.FinishedAt.IsZero() {
		log.FinishedAt = log.StartedAt
	}
	if log.Lines == nil {
		log.Lines = []string{}
	}
	return &log, nil
}

// decodeBackup reads a file backup, accepting records without id or mode.
func decodeBackup(data []byte, id string) (*model.BackupRecord, error) {
	type plain model.BackupRecord
	var rec model.BackupRecord
	aux := struct {
		*plain
		CreatedAt looseTime `json:"created_at"`
		Pct       loosePct  `json:"pct"`
	}{plain: (*plain)(&rec)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}

	rec.CreatedAt = time.Time(aux.CreatedAt)
	rec.Pct = aux.Pct.v
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.Mode == "" {
		rec.Mode = inferMode(id)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = stampFromID(id)
	}
	return &rec, nil
}

func inferRunKind(id string) model.RunKind {
	switch {
	case strings.HasPrefix(id, string(model.RunKindRollback)+"-"):
		return model.RunKindRollback
	case strings.HasPrefix(id, string(model.ModeChain)+"-"):
		return model.RunKindChainApply
	default:
		return model.RunKindPercentApply
	}
}

// stampFromID recovers the creation time older ids carried as a suffix,
// e.g. pct-run-2024-05-01T10-00-00-000Z. Zero when the id has none.
func stampFromID(id string) time.Time {
	m := legacyStamp.FindString(id)
	if m == "" {
		return time.Time{}
	}
	t, _ := parseStamp(m)
	return t
}
