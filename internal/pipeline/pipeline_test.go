package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-extractor/internal/model"
)

var acmeAnalysis = model.Analysis{
	CheapestPlan:    "$10/month",
	FreeTrial:       "Yes",
	EnterprisePlan:  "Yes",
	APIAvailability: "Yes",
	MarketType:      "B2B",
}

func stageStatuses(res *Result) map[string]model.StageStatus {
	out := make(map[string]model.StageStatus, len(res.Stages))
	for _, s := range res.Stages {
		out[s.Name] = s.Status
	}
	return out
}

func TestPipeline_Run_FullFlow(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme Corp").
		Return(model.Resolution{Domain: "acme.com", LinkedInURL: "https://www.linkedin.com/company/acme"}, nil)
	m.fetcher.On("Fetch", ctx, "acme.com").Return("Acme pricing: $10/month", nil)
	m.extractor.On("Extract", ctx, "Acme Corp", "Acme pricing: $10/month").Return(acmeAnalysis, nil)
	m.store.On("Save", ctx, mock.MatchedBy(func(rec *model.CompanyRecord) bool {
		return rec.CompanyName == "Acme Corp" && rec.Domain == "acme.com" && rec.Analysis == acmeAnalysis
	})).Run(func(args mock.Arguments) {
		rec := args.Get(1).(*model.CompanyRecord)
		rec.ID = 7
		rec.Timestamp = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	}).Return(nil)

	res, err := p.Run(ctx, "  Acme   Corp ")
	require.NoError(t, err)

	assert.Equal(t, StateSaved, res.State)
	assert.True(t, res.Persisted())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "Acme Corp", res.Company)
	assert.Nil(t, res.Failure)
	require.NotNil(t, res.Record)
	assert.Equal(t, int64(7), res.Record.ID)
	assert.Equal(t, "https://www.linkedin.com/company/acme", res.Record.LinkedInURL)

	assert.Equal(t, map[string]model.StageStatus{
		StageResolve: model.StageStatusComplete,
		StageFetch:   model.StageStatusComplete,
		StageExtract: model.StageStatusComplete,
		StagePersist: model.StageStatusComplete,
	}, stageStatuses(res))

	require.Len(t, res.History, 4)
	assert.Equal(t, EventAnalysisReady, res.History[3].Event)
	m.assertExpectations(t)
}

func TestPipeline_Run_ResolutionError(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme").Return(model.Resolution{},
		model.NewStageError(model.KindResolution, eris.New("resolve: serpapi search \"Acme official website\": quota exceeded")))

	res, err := p.Run(ctx, "Acme")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Nil(t, res.Record)
	require.NotNil(t, res.Failure)
	assert.Equal(t, StageResolve, res.Failure.Stage)
	assert.Equal(t, model.KindResolution, res.Failure.Kind)
	assert.Contains(t, res.Failure.Reason, "quota exceeded")
	assert.Equal(t, map[string]model.StageStatus{
		StageResolve: model.StageStatusFailed,
		StageFetch:   model.StageStatusSkipped,
		StageExtract: model.StageStatusSkipped,
		StagePersist: model.StageStatusSkipped,
	}, stageStatuses(res))

	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPipeline_Run_UntaggedResolverErrorDefaultsToResolution(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme").Return(model.Resolution{}, errors.New("boom"))

	res, err := p.Run(ctx, "Acme")
	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Equal(t, model.KindResolution, res.Failure.Kind)
}

func TestPipeline_Run_NoDomainFound(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Ghost Co").
		Return(model.Resolution{LinkedInURL: "https://www.linkedin.com/company/ghost"}, nil)

	res, err := p.Run(ctx, "Ghost Co")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.Failure)
	assert.Equal(t, StageResolve, res.Failure.Stage)
	assert.Equal(t, model.KindNoDomain, res.Failure.Kind)
	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPipeline_Run_FetchError(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme").Return(model.Resolution{Domain: "acme.com"}, nil)
	m.fetcher.On("Fetch", ctx, "acme.com").
		Return("", model.NewStageError(model.KindFetch, eris.New("fetch: acme.com returned status 503")))

	res, err := p.Run(ctx, "Acme")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.Failure)
	assert.Equal(t, StageFetch, res.Failure.Stage)
	assert.Equal(t, model.KindFetch, res.Failure.Kind)
	assert.Equal(t, "fetch: acme.com returned status 503", res.Failure.Reason)
	assert.Equal(t, model.StageStatusSkipped, stageStatuses(res)[StagePersist])

	require.Len(t, res.History, 3)
	assert.Equal(t, EventFetchFailed, res.History[2].Event)
	m.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPipeline_Run_ExtractionErrorStillSaves(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme").Return(model.Resolution{Domain: "acme.com"}, nil)
	m.fetcher.On("Fetch", ctx, "acme.com").Return("page text", nil)
	m.extractor.On("Extract", ctx, "Acme", "page text").
		Return(model.Analysis{}, model.NewStageError(model.KindExtraction, eris.New("extract: response is not an object")))
	m.store.On("Save", ctx, mock.MatchedBy(func(rec *model.CompanyRecord) bool {
		return rec.Analysis == model.UnknownAnalysis()
	})).Return(nil)

	res, err := p.Run(ctx, "Acme")
	require.NoError(t, err)

	assert.Equal(t, StateSaved, res.State)
	assert.True(t, res.Persisted())
	assert.Contains(t, res.ExtractionErr, "not an object")
	assert.Equal(t, model.StageStatusDegraded, stageStatuses(res)[StageExtract])
	require.NotNil(t, res.Record)
	assert.True(t, res.Record.Analysis.IsUnknown())
	m.assertExpectations(t)
}

func TestPipeline_Run_PersistenceErrorReportsRecord(t *testing.T) {
	p, m := newTestPipeline()
	ctx := context.Background()

	m.resolver.On("Resolve", ctx, "Acme").Return(model.Resolution{Domain: "acme.com"}, nil)
	m.fetcher.On("Fetch", ctx, "acme.com").Return("page text", nil)
	m.extractor.On("Extract", ctx, "Acme", "page text").Return(acmeAnalysis, nil)
	m.store.On("Save", ctx, mock.Anything).
		Return(model.NewStageError(model.KindPersistence, eris.New("sqlite: insert company Acme: disk full")))

	res, err := p.Run(ctx, "Acme")
	require.NoError(t, err)

	assert.Equal(t, StateSaved, res.State)
	assert.False(t, res.Persisted())
	assert.Contains(t, res.PersistErr, "disk full")
	assert.Nil(t, res.Failure)
	require.NotNil(t, res.Record)
	assert.Equal(t, acmeAnalysis, res.Record.Analysis)
	assert.Zero(t, res.Record.ID)
	assert.False(t, res.Record.Timestamp.IsZero())
	assert.Equal(t, model.StageStatusFailed, stageStatuses(res)[StagePersist])
}

func TestPipeline_Run_EmptyName(t *testing.T) {
	p, m := newTestPipeline()

	res, err := p.Run(context.Background(), "   ")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
	m.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestPipeline_Run_UniqueRunIDs(t *testing.T) {
	p, m := newTestPipeline()
	m.resolver.On("Resolve", mock.Anything, mock.Anything).Return(model.Resolution{}, nil)

	a, err := p.Run(context.Background(), "A")
	require.NoError(t, err)
	b, err := p.Run(context.Background(), "B")
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestResult_Persisted_Nil(t *testing.T) {
	var r *Result
	assert.False(t, r.Persisted())
}
