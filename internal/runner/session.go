package runner

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/pricing"
)

// Session carries one preview forward to its backup under an explicit id,
// so a backup snapshots exactly the variants the operator reviewed.
type Session struct {
	ID        string                  `json:"runId"`
	Mode      model.Mode              `json:"mode"`
	Pct       *float64                `json:"pct,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	BackupID  string                  `json:"backupId,omitempty"`
	Rows      []model.PreviewRow      `json:"rows,omitempty"`
	ChainRows []model.ChainPreviewRow `json:"chainRows,omitempty"`

	variants []model.Variant
	seq      uint64
}

// StartSession fetches the catalog, computes the preview for mode and keeps
// it under a new run id.
func (r *Runner) StartSession(ctx context.Context, mode model.Mode, pct float64) (*Session, error) {
	if !mode.Valid() {
		return nil, model.NewValidationError("mode", "must be pct or chain")
	}
	if mode == model.ModePercent {
		if err := pricing.ValidatePct(pct); err != nil {
			return nil, err
		}
	}

	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}

	u, err := uuid.NewV7()
	if err != nil {
		return nil, eris.Wrap(err, "runner: generate session id")
	}
	s := &Session{
		ID:        string(mode) + "-session-" + u.String(),
		Mode:      mode,
		CreatedAt: r.now().UTC(),
	}
	switch mode {
	case model.ModePercent:
		p := pct
		s.Pct = &p
		s.Rows = pricing.PercentRows(variants, pct)
		s.variants = variants
	case model.ModeChain:
		s.ChainRows = r.grouper.Preview(variants)
		s.variants = r.grouper.InScope(variants)
	}

	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	r.sessionSeq++
	s.seq = r.sessionSeq
	r.sessions[s.ID] = s
	r.evictSessionsLocked()
	return s.snapshot(), nil
}

// Session returns a copy of a previously started session.
func (r *Runner) Session(id string) (*Session, error) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, model.NewNotFoundError("session", id)
	}
	return s.snapshot(), nil
}

// snapshot copies the fields later writes touch; callers hold sessMu.
// Rows and variants are never modified after StartSession and stay shared.
func (s *Session) snapshot() *Session {
	c := *s
	return &c
}

// BackupSession snapshots the variants previewed by the session. A session
// that was never previewed is a validation error, not a silent refetch.
func (r *Runner) BackupSession(ctx context.Context, id string) (*BackupResult, error) {
	if id == "" {
		return nil, model.NewValidationError("runId", "is required; run a preview first")
	}
	r.sessMu.Lock()
	s, ok := r.sessions[id]
	r.sessMu.Unlock()
	if !ok {
		return nil, model.NewValidationError("runId", "no preview recorded for "+id)
	}

	res, err := r.backup(ctx, s.Mode, s.Pct, s.variants)
	if err != nil {
		return nil, err
	}

	r.sessMu.Lock()
	s.BackupID = res.BackupID
	r.sessMu.Unlock()
	return res, nil
}

// evictSessionsLocked drops the oldest sessions beyond maxSessions.
func (r *Runner) evictSessionsLocked() {
	if len(r.sessions) <= r.maxSessions {
		return
	}
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	for _, s := range all[:len(all)-r.maxSessions] {
		delete(r.sessions, s.ID)
	}
}
