package models

import (
	"encoding/json"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Analysis collects every intermediate artifact of one company run.
// Exactly one of OwnershipSummary and CompressedOwnershipSummary is set.
type Analysis struct {
	MethodologySummary         string            `json:"methodology_summary"`
	DnoRule                    string            `json:"dno_rule"`
	OwnershipSummary           string            `json:"ownership_summary,omitempty"`
	CompressedOwnershipSummary string            `json:"compressed_ownership_summary,omitempty"`
	FloatShare                 *FloatShareResult `json:"float_share_results"`
	MethodologyDocument        string            `json:"methodology_document"`
	ProxyDocument              string            `json:"proxy_document"`
	ResultsFile                string            `json:"results_file,omitempty"`
}

// MarshalJSON writes exactly one ownership key: compressed_ownership_summary
// when compressed text exists, otherwise ownership_summary, even when empty.
func (a Analysis) MarshalJSON() ([]byte, error) {
	type plain Analysis
	out := struct {
		plain
		OwnershipSummary           *string `json:"ownership_summary,omitempty"`
		CompressedOwnershipSummary *string `json:"compressed_ownership_summary,omitempty"`
	}{plain: plain(a)}
	if a.CompressedOwnershipSummary != "" {
		out.CompressedOwnershipSummary = &a.CompressedOwnershipSummary
	} else {
		out.OwnershipSummary = &a.OwnershipSummary
	}
	return json.Marshal(out)
}

// Ownership returns whichever ownership text was produced.
func (a *Analysis) Ownership() string {
	if a.CompressedOwnershipSummary != "" {
		return a.CompressedOwnershipSummary
	}
	return a.OwnershipSummary
}

// CompanyResults is the success payload for one ticker: the float figures
// plus the filing they were derived from.
type CompanyResults struct {
	FloatShareResult
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	FilingDate  string `json:"filing_date"`
	FilingURL   string `json:"filing_url"`
}

// CompanyOutcome is the tagged per-company result of a batch entry.
type CompanyOutcome struct {
	Ticker  string          `json:"ticker"`
	Status  string          `json:"status"`
	Results *CompanyResults `json:"results,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (o CompanyOutcome) Succeeded() bool { return o.Status == StatusSuccess }

// BatchResult aggregates a batch run. Built incrementally, written once.
type BatchResult struct {
	RunID              string                    `json:"run_id"`
	AnalysisDate       time.Time                 `json:"analysis_date"`
	TotalCompanies     int                       `json:"total_companies"`
	SuccessfulAnalyses int                       `json:"successful_analyses"`
	FailedAnalyses     int                       `json:"failed_analyses"`
	Companies          map[string]CompanyOutcome `json:"companies"`
	Order              []string                  `json:"-"`
}

// Record adds one outcome and updates the counts.
func (b *BatchResult) Record(outcome CompanyOutcome) {
	if b.Companies == nil {
		b.Companies = make(map[string]CompanyOutcome)
	}
	if _, seen := b.Companies[outcome.Ticker]; !seen {
		b.Order = append(b.Order, outcome.Ticker)
	}
	b.Companies[outcome.Ticker] = outcome
	b.TotalCompanies = len(b.Companies)

	b.SuccessfulAnalyses, b.FailedAnalyses = 0, 0
	for _, o := range b.Companies {
		if o.Succeeded() {
			b.SuccessfulAnalyses++
		} else {
			b.FailedAnalyses++
		}
	}
}
