package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Unknown is the sentinel value for an analysis field that could not be
// determined from the page text.
const Unknown = "unknown"

// AnalysisKeys lists the fixed analysis field names in their canonical order.
var AnalysisKeys = []string{
	"cheapest_plan",
	"free_trial",
	"enterprise_plan",
	"api_availability",
	"market_type",
}

// Analysis is the fixed-shape structured extraction for a company website.
type Analysis struct {
	CheapestPlan    string `json:"cheapest_plan"`
	FreeTrial       string `json:"free_trial"`
	EnterprisePlan  string `json:"enterprise_plan"`
	APIAvailability string `json:"api_availability"`
	MarketType      string `json:"market_type"`
}

// UnknownAnalysis returns an Analysis with every field set to Unknown.
func UnknownAnalysis() Analysis {
	return Analysis{
		CheapestPlan:    Unknown,
		FreeTrial:       Unknown,
		EnterprisePlan:  Unknown,
		APIAvailability: Unknown,
		MarketType:      Unknown,
	}
}

// Normalize trims every field and replaces blank ones with Unknown.
func (a Analysis) Normalize() Analysis {
	fix := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return Unknown
		}
		return s
	}
	return Analysis{
		CheapestPlan:    fix(a.CheapestPlan),
		FreeTrial:       fix(a.FreeTrial),
		EnterprisePlan:  fix(a.EnterprisePlan),
		APIAvailability: fix(a.APIAvailability),
		MarketType:      fix(a.MarketType),
	}
}

// Set assigns the field named by key. Unrecognized keys are ignored and
// reported as false.
func (a *Analysis) Set(key, value string) bool {
	switch key {
	case "cheapest_plan":
		a.CheapestPlan = value
	case "free_trial":
		a.FreeTrial = value
	case "enterprise_plan":
		a.EnterprisePlan = value
	case "api_availability":
		a.APIAvailability = value
	case "market_type":
		a.MarketType = value
	default:
		return false
	}
	return true
}

// Fields returns the analysis as a key → value map holding all five keys.
func (a Analysis) Fields() map[string]string {
	return map[string]string{
		"cheapest_plan":    a.CheapestPlan,
		"free_trial":       a.FreeTrial,
		"enterprise_plan":  a.EnterprisePlan,
		"api_availability": a.APIAvailability,
		"market_type":      a.MarketType,
	}
}

// IsUnknown reports whether no field carries a determined value.
func (a Analysis) IsUnknown() bool {
	return a.Normalize() == UnknownAnalysis()
}

// Resolution is the Resolver's output. Empty fields mean absent.
type Resolution struct {
	Domain      string `json:"domain,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// SearchResult is a single ranked hit from a search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// CompanyRecord is the persisted unit of pipeline output. Records are
// append-only: reprocessing a company inserts a new row.
type CompanyRecord struct {
	ID          int64     `json:"id,omitempty"`
	CompanyName string    `json:"company_name"`
	Domain      string    `json:"domain,omitempty"`
	LinkedInURL string    `json:"linkedin_url,omitempty"`
	Analysis    Analysis  `json:"analysis"`
	Timestamp   time.Time `json:"timestamp"`
}

// NormalizeName trims a user-supplied company name and collapses internal
// whitespace runs to a single space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameKey returns the case-insensitive lookup key for a company name.
func NameKey(name string) string {
	return cases.Fold().String(NormalizeName(name))
}
