// Package monitoring summarizes stored extractions and raises alerts when
// their quality drops below configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/store"
)

// Snapshot is a point-in-time view of stored extraction quality.
type Snapshot struct {
	Records      int `json:"records"`
	Companies    int `json:"companies"`
	WithLinkedIn int `json:"with_linkedin"`
	FullyUnknown int `json:"fully_unknown"`

	UnknownRate    float64 `json:"unknown_rate"`
	NoLinkedInRate float64 `json:"no_linkedin_rate"`

	// Per analysis key, the number of records where that field is unknown.
	UnknownFields map[string]int `json:"unknown_fields"`
	MarketTypes   map[string]int `json:"market_types"`

	LatestAt      *time.Time `json:"latest_at,omitempty"`
	LookbackHours int        `json:"lookback_hours"`
	CollectedAt   time.Time  `json:"collected_at"`
}

// RecordLister is the slice of store.Store the collector needs.
type RecordLister interface {
	ListAll(ctx context.Context, opts store.ListOptions) ([]model.CompanyRecord, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	store RecordLister
	now   func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(st RecordLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect summarizes records saved within the last lookbackHours. Zero
// covers every record.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	if lookbackHours < 0 {
		return nil, eris.Errorf("monitoring: lookback hours must be non-negative, got %d", lookbackHours)
	}

	now := c.now().UTC()
	snap := &Snapshot{
		UnknownFields: make(map[string]int, len(model.AnalysisKeys)),
		MarketTypes:   make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	for _, k := range model.AnalysisKeys {
		snap.UnknownFields[k] = 0
	}

	recs, err := c.store.ListAll(ctx, store.ListOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list records")
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	companies := make(map[string]struct{})
	for _, rec := range recs {
		if !cutoff.IsZero() && rec.Timestamp.Before(cutoff) {
			continue
		}
		snap.Records++
		companies[model.NameKey(rec.CompanyName)] = struct{}{}

		if snap.LatestAt == nil || rec.Timestamp.After(*snap.LatestAt) {
			ts := rec.Timestamp
			snap.LatestAt = &ts
		}
		if rec.LinkedInURL != "" {
			snap.WithLinkedIn++
		}

		a := rec.Analysis.Normalize()
		if a.IsUnknown() {
			snap.FullyUnknown++
		}
		for k, v := range a.Fields() {
			if v == model.Unknown {
				snap.UnknownFields[k]++
			}
		}
		snap.MarketTypes[a.MarketType]++
	}
	snap.Companies = len(companies)

	if snap.Records > 0 {
		snap.UnknownRate = float64(snap.FullyUnknown) / float64(snap.Records)
		snap.NoLinkedInRate = float64(snap.Records-snap.WithLinkedIn) / float64(snap.Records)
	}
	return snap, nil
}
