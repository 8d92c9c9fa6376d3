// Package pipeline sequences resolve, fetch, extract and persist for a
// company as an explicit state machine.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/store"
)

// Resolver finds a company's homepage domain and LinkedIn page.
type Resolver interface {
	Resolve(ctx context.Context, companyName string) (model.Resolution, error)
}

// Fetcher returns the plain text of a domain's homepage.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) (string, error)
}

// Extractor produces the structured analysis from page text.
type Extractor interface {
	Extract(ctx context.Context, company, text string) (model.Analysis, error)
}

// Stage names as they appear in Result.Stages and Failure.Stage.
const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageExtract = "extract"
	StagePersist = "persist"
)

var stageOrder = []string{StageResolve, StageFetch, StageExtract, StagePersist}

// Failure describes why a run ended in StateFailed.
type Failure struct {
	Stage  string          `json:"stage"`
	Kind   model.ErrorKind `json:"kind"`
	Reason string          `json:"reason"`
}

// Result is the outcome of one run. Record is set whenever the run reached
// StateSaved, including when persisting it failed (PersistErr).
type Result struct {
	RunID         string               `json:"run_id"`
	Company       string               `json:"company"`
	State         State                `json:"state"`
	Record        *model.CompanyRecord `json:"record,omitempty"`
	Failure       *Failure             `json:"failure,omitempty"`
	ExtractionErr string               `json:"extraction_error,omitempty"`
	PersistErr    string               `json:"persist_error,omitempty"`
	Stages        []model.StageResult  `json:"stages"`
	History       []Transition         `json:"history"`
}

// Persisted reports whether the record was saved to the store.
func (r *Result) Persisted() bool {
	return r != nil && r.State == StateSaved && r.PersistErr == ""
}

// Pipeline runs companies through the stages.
type Pipeline struct {
	resolver  Resolver
	fetcher   Fetcher
	extractor Extractor
	store     store.Store
}

// New creates a Pipeline with all dependencies.
func New(r Resolver, f Fetcher, e Extractor, st store.Store) *Pipeline {
	return &Pipeline{
		resolver:  r,
		fetcher:   f,
		extractor: e,
		store:     st,
	}
}

// Run processes one company. Stage failures are reported in the Result;
// the returned error is non-nil only for a blank name or a broken
// transition table.
func (p *Pipeline) Run(ctx context.Context, companyName string) (*Result, error) {
	company := model.NormalizeName(companyName)
	if company == "" {
		return nil, model.NewStageError(model.KindInvalidInput, eris.New("pipeline: company name is required"))
	}

	res := &Result{RunID: uuid.New().String(), Company: company}
	log := zap.L().With(zap.String("company", company), zap.String("run_id", res.RunID))
	log.Info("pipeline: starting run")

	m := NewMachine()
	if err := m.Fire(EventStart); err != nil {
		return nil, err
	}

	// Resolving
	var resolution model.Resolution
	err := track(log, res, StageResolve, model.StageStatusFailed, func() error {
		var rErr error
		resolution, rErr = p.resolver.Resolve(ctx, company)
		if rErr != nil {
			return rErr
		}
		if resolution.Domain == "" {
			return model.NewStageError(model.KindNoDomain, eris.Errorf("resolve: no homepage found for %q", company))
		}
		return nil
	})
	if err != nil {
		return p.fail(log, m, res, EventResolveFailed, StageResolve, model.KindResolution, err)
	}
	if err := m.Fire(EventDomainFound); err != nil {
		return nil, err
	}

	// Fetching
	var text string
	err = track(log, res, StageFetch, model.StageStatusFailed, func() error {
		var fErr error
		text, fErr = p.fetcher.Fetch(ctx, resolution.Domain)
		return fErr
	})
	if err != nil {
		return p.fail(log, m, res, EventFetchFailed, StageFetch, model.KindFetch, err)
	}
	if err := m.Fire(EventTextObtained); err != nil {
		return nil, err
	}

	// Extracting never fails the run; a bad response degrades to unknowns.
	var analysis model.Analysis
	err = track(log, res, StageExtract, model.StageStatusDegraded, func() error {
		var eErr error
		analysis, eErr = p.extractor.Extract(ctx, company, text)
		return eErr
	})
	if err != nil {
		analysis = model.UnknownAnalysis()
		res.ExtractionErr = err.Error()
	}

	rec := &model.CompanyRecord{
		CompanyName: company,
		Domain:      resolution.Domain,
		LinkedInURL: resolution.LinkedInURL,
		Analysis:    analysis.Normalize(),
	}
	err = track(log, res, StagePersist, model.StageStatusFailed, func() error {
		return p.store.Save(ctx, rec)
	})
	if err != nil {
		res.PersistErr = err.Error()
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}
	}
	res.Record = rec

	if err := m.Fire(EventAnalysisReady); err != nil {
		return nil, err
	}
	return finish(log, m, res), nil
}

// fail moves the machine to StateFailed and marks the remaining stages skipped.
func (p *Pipeline) fail(log *zap.Logger, m *Machine, res *Result, ev Event, stage string, fallback model.ErrorKind, err error) (*Result, error) {
	if fireErr := m.Fire(ev); fireErr != nil {
		return nil, fireErr
	}

	kind := model.KindOf(err)
	if kind == "" {
		kind = fallback
	}
	res.Failure = &Failure{Stage: stage, Kind: kind, Reason: err.Error()}

	skipping := false
	for _, name := range stageOrder {
		if skipping {
			res.Stages = append(res.Stages, model.StageResult{Name: name, Status: model.StageStatusSkipped})
		}
		if name == stage {
			skipping = true
		}
	}
	return finish(log, m, res), nil
}

func finish(log *zap.Logger, m *Machine, res *Result) *Result {
	res.State = m.State()
	res.History = m.History()

	fields := []zap.Field{zap.String("state", string(res.State))}
	if res.Failure != nil {
		fields = append(fields, zap.String("failed_stage", res.Failure.Stage), zap.String("kind", string(res.Failure.Kind)))
	}
	if res.Record != nil && res.Record.ID != 0 {
		fields = append(fields, zap.Int64("record_id", res.Record.ID))
	}
	log.Info("pipeline: run finished", fields...)
	return res
}

// track times fn and appends its StageResult. onErr is the status recorded
// when fn fails.
func track(log *zap.Logger, res *Result, name string, onErr model.StageStatus, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()

	sr := model.StageResult{Name: name, Status: model.StageStatusComplete, Duration: duration}
	if err != nil {
		sr.Status = onErr
		sr.Error = err.Error()
		if onErr == model.StageStatusDegraded {
			log.Warn("pipeline: stage degraded",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		}
	} else {
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
		)
	}

	res.Stages = append(res.Stages, sr)
	return err
}
