package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/config"
	"github.com/sells-group/company-extractor/internal/db"
	"github.com/sells-group/company-extractor/internal/extract"
	"github.com/sells-group/company-extractor/internal/fetch"
	"github.com/sells-group/company-extractor/internal/pipeline"
	"github.com/sells-group/company-extractor/internal/resilience"
	"github.com/sells-group/company-extractor/internal/resolve"
	"github.com/sells-group/company-extractor/internal/store"
	anthropicpkg "github.com/sells-group/company-extractor/pkg/anthropic"
	"github.com/sells-group/company-extractor/pkg/gemini"
	"github.com/sells-group/company-extractor/pkg/jina"
	"github.com/sells-group/company-extractor/pkg/openai"
	"github.com/sells-group/company-extractor/pkg/serpapi"
)

// pipelineEnv holds the store, the pipeline and any provider clients that
// need closing. Callers should defer env.Close().
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	closers  []func() error
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for _, c := range pe.closers {
		_ = c()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured backend. It does not migrate.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "companies.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initSearcher builds the search adapter selected by search.provider.
func initSearcher(c *config.Config) (resolve.Searcher, error) {
	hc := &http.Client{Timeout: time.Duration(c.Search.TimeoutSecs) * time.Second}

	switch c.Search.Provider {
	case "serpapi":
		opts := []serpapi.Option{
			serpapi.WithHTTPClient(hc),
			serpapi.WithNumResults(c.Search.NumResults),
		}
		if c.SerpAPI.BaseURL != "" {
			opts = append(opts, serpapi.WithBaseURL(c.SerpAPI.BaseURL))
		}
		return resolve.NewSerpAPISearcher(serpapi.NewClient(c.SerpAPI.Key, opts...)), nil
	case "jina":
		// retry.* is applied once, by the resolver.
		opts := []jina.Option{jina.WithHTTPClient(hc), jina.WithRetry(1, 0)}
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithBaseURL(c.Jina.SearchBaseURL))
		}
		return resolve.NewJinaSearcher(jina.NewClient(c.Jina.Key, opts...)), nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", c.Search.Provider)
	}
}

// initGenerator builds the LLM adapter selected by llm.provider. The
// returned close func is never nil.
func initGenerator(ctx context.Context, c *config.Config) (extract.Generator, func() error, error) {
	noop := func() error { return nil }

	switch c.LLM.Provider {
	case "anthropic":
		opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(0)}
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(c.Anthropic.Key, opts...)
		return extract.NewAnthropicGenerator(client, c.Anthropic.Model, c.LLM.MaxTokens, c.LLM.Temperature), noop, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, c.Gemini.Key)
		if err != nil {
			return nil, noop, err
		}
		return extract.NewGeminiGenerator(client, c.Gemini.Model, c.LLM.MaxTokens, c.LLM.Temperature), client.Close, nil
	case "openai":
		opts := []openai.Option{openai.WithModel(c.OpenAI.Model)}
		if c.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.OpenAI.BaseURL))
		}
		client := openai.NewClient(c.OpenAI.Key, opts...)
		return extract.NewOpenAIGenerator(client, c.OpenAI.Model, c.LLM.MaxTokens, c.LLM.Temperature), noop, nil
	default:
		return nil, noop, eris.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
}

// initPipeline validates provider credentials, opens and migrates the
// store, and wires the resolver, fetcher and extractor into a Pipeline.
func initPipeline(ctx context.Context, c *config.Config) (*pipelineEnv, error) {
	if err := c.ValidateProviders(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	searcher, err := initSearcher(c)
	if err != nil {
		env.Close()
		return nil, err
	}
	gen, closeGen, err := initGenerator(ctx, c)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeGen)

	retry := resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	env.Pipeline = pipeline.New(
		resolve.New(searcher, resolve.WithRetry(retry)),
		fetch.New(c.Fetch, fetch.WithRetry(retry)),
		extract.New(gen),
		st,
	)

	zap.L().Debug("pipeline initialized",
		zap.String("store", c.Store.Driver),
		zap.String("search", searcher.Name()),
		zap.String("llm", gen.Name()),
		zap.Int("retry_attempts", c.Retry.MaxAttempts),
	)
	return env, nil
}
