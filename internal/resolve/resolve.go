// Package resolve maps a company name to its homepage domain and LinkedIn
// company page using a web search provider.
package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/resilience"
)

// Searcher runs a web search and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	Name() string
}

// DefaultDenylist holds aggregator, social and directory hosts that are
// never a company's own homepage. Matching includes subdomains.
var DefaultDenylist = []string{
	"wikipedia.org",
	"wikidata.org",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"linkedin.com",
	"crunchbase.com",
	"bloomberg.com",
	"glassdoor.com",
	"indeed.com",
	"zoominfo.com",
	"pitchbook.com",
	"yelp.com",
	"reddit.com",
	"medium.com",
	"g2.com",
	"capterra.com",
	"trustpilot.com",
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetry enables retries of transient search failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Resolver) {
		r.retry = cfg
	}
}

// WithDenylist appends hosts to the default denylist.
func WithDenylist(hosts ...string) Option {
	return func(r *Resolver) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				r.denylist = append(r.denylist, h)
			}
		}
	}
}

// Resolver finds a company's homepage domain and LinkedIn URL.
type Resolver struct {
	searcher Searcher
	denylist []string
	retry    resilience.RetryConfig
}

// New creates a Resolver backed by the given searcher.
func New(s Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		searcher: s,
		denylist: append([]string(nil), DefaultDenylist...),
		retry:    resilience.NoRetry(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve searches for the company's homepage and LinkedIn page. A missing
// homepage or LinkedIn page yields empty fields, not an error. A failed
// search returns a resolution_error.
func (r *Resolver) Resolve(ctx context.Context, companyName string) (model.Resolution, error) {
	name := model.NormalizeName(companyName)
	if name == "" {
		return model.Resolution{}, model.NewStageError(model.KindInvalidInput, eris.New("resolve: empty company name"))
	}

	log := zap.L().With(zap.String("company", name), zap.String("provider", r.searcher.Name()))

	results, err := r.search(ctx, name, name+" official website")
	if err != nil {
		return model.Resolution{}, err
	}
	log.Debug("resolve: homepage query", zap.Int("candidates", len(results)))

	var res model.Resolution
	res.Domain = r.pickHomepage(results)
	res.LinkedInURL = pickLinkedIn(results)

	if res.LinkedInURL == "" {
		more, err := r.search(ctx, name, name+" site:linkedin.com/company")
		if err != nil {
			return model.Resolution{}, err
		}
		log.Debug("resolve: linkedin query", zap.Int("candidates", len(more)))
		res.LinkedInURL = pickLinkedIn(more)
	}

	log.Info("resolve: complete",
		zap.String("domain", res.Domain),
		zap.String("linkedin_url", res.LinkedInURL),
	)
	return res, nil
}

func (r *Resolver) search(ctx context.Context, company, query string) ([]model.SearchResult, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger("resolve", company)

	results, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.SearchResult, error) {
		return r.searcher.Search(ctx, query)
	})
	if err != nil {
		return nil, model.NewStageError(model.KindResolution,
			eris.Wrapf(err, "resolve: %s search %q", r.searcher.Name(), query))
	}
	return results, nil
}

// pickHomepage returns the host of the first result not on the denylist.
func (r *Resolver) pickHomepage(results []model.SearchResult) string {
	for _, res := range results {
		host := hostOf(res.URL)
		if host == "" || r.denied(host) {
			continue
		}
		return host
	}
	return ""
}

func (r *Resolver) denied(host string) bool {
	for _, d := range r.denylist {
		if matchesDomain(host, d) {
			return true
		}
	}
	return false
}

// pickLinkedIn returns the first linkedin.com/company/<slug> URL, without
// query string or fragment.
func pickLinkedIn(results []model.SearchResult) string {
	for _, res := range results {
		u, err := url.Parse(strings.TrimSpace(res.URL))
		if err != nil || !matchesDomain(strings.ToLower(u.Hostname()), "linkedin.com") {
			continue
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) < 2 || segs[0] != "company" || segs[1] == "" {
			continue
		}
		scheme := u.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + "://" + strings.ToLower(u.Host) + "/company/" + segs[1]
	}
	return ""
}

// hostOf returns the lowercased hostname of rawURL without port or a
// leading "www.".
func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	return strings.TrimPrefix(host, "www.")
}

// matchesDomain reports whether host is domain or one of its subdomains.
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
