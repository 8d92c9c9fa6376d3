package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-extractor/internal/config"
	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/resilience"
)

const stripeHome = `<!doctype html>
<html><head><title>Stripe | Financial Infrastructure</title>
<style>.hero{color:red}</style><script>window.dataLayer=[]</script></head>
<body>
  <nav><a href="/pricing">Pricing</a></nav>
  <h1>Financial infrastructure for the internet</h1>
  <p>Start for free.</p><p>Enterprise   plans available.</p>
  <noscript>Enable JavaScript</noscript>
  <svg><text>logo</text></svg>
</body></html>`

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		TimeoutSecs:  5,
		MaxChars:     6000,
		MaxBodyBytes: 1 << 20,
		UserAgent:    config.DefaultUserAgent,
	}
}

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(strings.TrimPrefix(srv.URL, "https://"), "http://")
}

func TestFetch_HTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(stripeHome))
	}))
	defer srv.Close()

	f := New(testConfig(), WithHTTPClient(srv.Client()))
	text, err := f.Fetch(context.Background(), hostOf(srv))

	require.NoError(t, err)
	assert.Equal(t, "Pricing Financial infrastructure for the internet Start for free. Enterprise plans available.", text)
}

func TestFetch_FallsBackToHTTPOnConnectionFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("<html><body><p>Plain HTTP site</p></body></html>"))
	}))
	defer srv.Close()

	// HTTPS against a plain listener fails before any response.
	text, err := New(testConfig()).Fetch(context.Background(), hostOf(srv))

	require.NoError(t, err)
	assert.Equal(t, "Plain HTTP site", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_StatusErrorDoesNotFallBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))

	require.Error(t, err)
	assert.Equal(t, model.KindFetch, model.KindOf(err))
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_BlockedStatusNamesBlockType(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked: cloudflare")
}

func TestFetch_EmptyTextIsFetchError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><head><script>app()</script></head><body>  <div id=root></div> </body></html>"))
	}))
	defer srv.Close()

	_, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))

	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindFetch))
	assert.Contains(t, err.Error(), "no text content")
}

func TestFetch_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	host := hostOf(srv)
	srv.Close()

	_, err := New(testConfig()).Fetch(context.Background(), host)

	require.Error(t, err)
	assert.Equal(t, model.KindFetch, model.KindOf(err))
	assert.Contains(t, err.Error(), "http://"+host)
}

func TestFetch_EmptyDomain(t *testing.T) {
	_, err := New(testConfig()).Fetch(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, model.KindFetch, model.KindOf(err))
}

func TestFetch_Truncates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>" + strings.Repeat("é", 500) + "</p></body></html>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxChars = 100
	text, err := New(cfg, WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))

	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 100), text)
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>" + strings.Repeat("a", 4000) + "</p><p>tail</p></body></html>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 2048
	text, err := New(cfg, WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))

	require.NoError(t, err)
	assert.NotContains(t, text, "tail")
	assert.Less(t, len(text), 2048)
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<p>second time lucky</p>"))
	}))
	defer srv.Close()

	f := New(testConfig(),
		WithHTTPClient(srv.Client()),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	)
	text, err := f.Fetch(context.Background(), hostOf(srv))

	require.NoError(t, err)
	assert.Equal(t, "second time lucky", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_AntiBotPageStillUsed(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Please complete the captcha. Acme sells widgets.</p></body></html>"))
	}))
	defer srv.Close()

	text, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))
	require.NoError(t, err)
	assert.Contains(t, text, "Acme sells widgets")
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>Soci\xe9t\xe9 G\xe9n\xe9rale: essai gratuit</p></body></html>"))
	}))
	defer srv.Close()

	text, err := New(testConfig(), WithHTTPClient(srv.Client())).Fetch(context.Background(), hostOf(srv))
	require.NoError(t, err)
	assert.Equal(t, "Société Générale: essai gratuit", text)
}
