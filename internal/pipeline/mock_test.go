package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/store"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, companyName string) (model.Resolution, error) {
	args := m.Called(ctx, companyName)
	return args.Get(0).(model.Resolution), args.Error(1)
}

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, domain string) (string, error) {
	args := m.Called(ctx, domain)
	return args.String(0), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, company, text string) (model.Analysis, error) {
	args := m.Called(ctx, company, text)
	return args.Get(0).(model.Analysis), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, rec *model.CompanyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) ListAll(ctx context.Context, opts store.ListOptions) ([]model.CompanyRecord, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CompanyRecord), args.Error(1)
}

func (m *mockStore) FindLatest(ctx context.Context, name string) (*model.CompanyRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyRecord), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

type mocks struct {
	resolver  *mockResolver
	fetcher   *mockFetcher
	extractor *mockExtractor
	store     *mockStore
}

func newTestPipeline() (*Pipeline, *mocks) {
	m := &mocks{
		resolver:  new(mockResolver),
		fetcher:   new(mockFetcher),
		extractor: new(mockExtractor),
		store:     new(mockStore),
	}
	return New(m.resolver, m.fetcher, m.extractor, m.store), m
}

func (m *mocks) assertExpectations(t mock.TestingT) {
	m.resolver.AssertExpectations(t)
	m.fetcher.AssertExpectations(t)
	m.extractor.AssertExpectations(t)
	m.store.AssertExpectations(t)
}
