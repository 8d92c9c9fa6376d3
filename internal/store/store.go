// Package store persists CompanyRecords in an append-only log. Every Save
// inserts a new row; lookups return the most recent record for a name.
package store

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-extractor/internal/model"
)

// ListOptions controls ListAll. A zero Limit returns every record.
type ListOptions struct {
	Limit int `json:"limit,omitempty"`
}

// Store defines the persistence interface for company records.
type Store interface {
	// Save inserts rec and assigns its ID and Timestamp. On failure rec is
	// left unchanged and the error is a persistence_error.
	Save(ctx context.Context, rec *model.CompanyRecord) error
	// ListAll returns records newest first, ties broken by descending id.
	ListAll(ctx context.Context, opts ListOptions) ([]model.CompanyRecord, error)
	// FindLatest returns the newest record for name, or nil if none exists.
	FindLatest(ctx context.Context, name string) (*model.CompanyRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// clock issues non-decreasing epoch-second timestamps for one store
// instance. Backends additionally clamp each insert to the stored maximum
// so the order also holds across instances and restarts.
type clock struct {
	mu   sync.Mutex
	last float64
	now  func() time.Time
}

func newClock() *clock {
	return &clock{now: time.Now}
}

func (c *clock) next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := toEpoch(c.now())
	if ts < c.last {
		ts = c.last
	}
	c.last = ts
	return ts
}

// observe advances the clock to a timestamp the database assigned.
func (c *clock) observe(ts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.last {
		c.last = ts
	}
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromEpoch(ts float64) time.Time {
	return time.UnixMicro(int64(math.Round(ts * 1e6))).UTC()
}

// prepare validates rec and returns the columns shared by every backend.
func prepare(rec *model.CompanyRecord) (name, key, analysis string, err error) {
	if rec == nil {
		return "", "", "", eris.New("store: nil record")
	}
	name = model.NormalizeName(rec.CompanyName)
	if name == "" {
		return "", "", "", eris.New("store: company name is required")
	}
	b, err := json.Marshal(rec.Analysis.Normalize())
	if err != nil {
		return "", "", "", eris.Wrap(err, "store: marshal analysis")
	}
	return name, model.NameKey(name), string(b), nil
}

func decodeAnalysis(raw string) (model.Analysis, error) {
	var a model.Analysis
	if raw == "" {
		return model.UnknownAnalysis(), nil
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return model.UnknownAnalysis(), eris.Wrap(err, "store: unmarshal analysis")
	}
	return a.Normalize(), nil
}

// nullable maps an absent (empty) value to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func persistErr(err error) error {
	return model.NewStageError(model.KindPersistence, err)
}
