package pipeline

import (
	"context"
	"float_share/pkg/core/artifact"
	"float_share/pkg/core/config"
	"float_share/pkg/core/constituents"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/edgar"
	"float_share/pkg/core/floatcalc"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/logging"
	"float_share/pkg/core/methodology"
	"float_share/pkg/core/ownership"
	"float_share/pkg/models"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilingSource resolves a ticker to its latest proxy filing and fetches it.
type FilingSource interface {
	ProxyFiling(ctx context.Context, ticker string) (*models.Filing, error)
	Download(ctx context.Context, filing *models.Filing, dir string) (string, error)
}

// OwnershipExtractor produces ownership text from a proxy document.
type OwnershipExtractor interface {
	Extract(ctx context.Context, docPath string) (ownership.Excerpt, error)
	ExtractCompressed(ctx context.Context, docPath string) (string, error)
}

// MethodologySource produces the methodology summary and the D+O rule.
type MethodologySource interface {
	Summary(ctx context.Context, docPath string) (string, error)
	DnoRule(ctx context.Context, docPath string) (string, error)
}

// FloatCalculator turns the three texts into a structured result.
type FloatCalculator interface {
	Compute(ctx context.Context, ownership, methodology, dnoRule string) (*models.FloatShareResult, error)
	Persist(result *models.FloatShareResult, path string) error
}

// ConstituentSource lists index members for batch runs.
type ConstituentSource interface {
	Fetch(ctx context.Context, index string) ([]models.Company, error)
}

// Deps groups the orchestrator's collaborators.
type Deps struct {
	Filings      FilingSource
	Ownership    OwnershipExtractor
	Methodology  MethodologySource
	Calculator   FloatCalculator
	Constituents ConstituentSource
}

// Options holds the fixed paths of a run.
type Options struct {
	MethodologyDocument string
	AssetDir            string
	ResultsDir          string
	Index               string // constituents index for batch runs, default sp500
}

// Orchestrator sequences the float share analysis for one company or a
// batch. Companies are processed strictly one after another.
type Orchestrator struct {
	deps     Deps
	opts     Options
	now      func() time.Time
	newRunID func() string
	logger   *slog.Logger
}

// NewOrchestrator wires the production collaborators from configuration.
func NewOrchestrator(cfg config.Config, gen llm.Generator, sec *edgar.Client, logger *slog.Logger) *Orchestrator {
	logger = logging.OrDefault(logger)
	temp := cfg.Gemini.Temperature

	deps := Deps{
		Filings:      sec,
		Ownership:    ownership.NewExtractor(gen, cfg.Ownership.CompressionThreshold, temp, logger),
		Methodology:  methodology.NewExtractor(gen, artifact.NewFileStore(cfg.Paths.AssetDir, logger), temp, logger),
		Calculator:   floatcalc.NewCalculator(gen, temp, logger),
		Constituents: constituents.NewSource(sec, logger),
	}
	return NewOrchestratorWithDeps(deps, Options{
		MethodologyDocument: cfg.Paths.MethodologyDocument,
		AssetDir:            cfg.Paths.AssetDir,
		ResultsDir:          cfg.Paths.ResultsDir,
	}, logger)
}

// NewOrchestratorWithDeps allows injecting custom collaborators (e.g., for testing).
func NewOrchestratorWithDeps(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.AssetDir == "" {
		opts.AssetDir = config.DefaultAssetDir
	}
	if opts.MethodologyDocument == "" {
		opts.MethodologyDocument = config.DefaultMethodologyDocument
	}
	if opts.Index == "" {
		opts.Index = constituents.IndexSP500
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
		logger:   logging.OrDefault(logger),
	}
}

// =============================================================================
// SINGLE COMPANY
// =============================================================================

// AnalyzeDocuments runs the pipeline on local documents. When resultsPath is
// set the float share result is written there.
func (o *Orchestrator) AnalyzeDocuments(ctx context.Context, methodologyPath, proxyPath, resultsPath string) (*models.Analysis, error) {
	start := time.Now()
	a := &models.Analysis{MethodologyDocument: methodologyPath, ProxyDocument: proxyPath}

	o.logger.Info("stage_started", "stage", "ownership", "document", proxyPath)
	if err := o.extractOwnership(ctx, proxyPath, a); err != nil {
		return nil, err
	}

	o.logger.Info("stage_started", "stage", "methodology", "document", methodologyPath)
	summary, err := o.deps.Methodology.Summary(ctx, methodologyPath)
	if err != nil {
		return nil, err
	}
	rule, err := o.deps.Methodology.DnoRule(ctx, methodologyPath)
	if err != nil {
		return nil, err
	}
	a.MethodologySummary, a.DnoRule = summary, rule

	o.logger.Info("stage_started", "stage", "calculation")
	result, err := o.deps.Calculator.Compute(ctx, a.Ownership(), summary, rule)
	if err != nil {
		return nil, err
	}
	a.FloatShare = result

	if missing := result.MissingRequired(); len(missing) > 0 {
		o.logger.Warn("float_share_incomplete", "missing", missing)
	}

	if resultsPath != "" {
		if err := o.deps.Calculator.Persist(result, resultsPath); err != nil {
			return nil, err
		}
		a.ResultsFile = resultsPath
	}

	o.logger.Info("analysis_complete", "proxy", proxyPath, "duration", time.Since(start).String())
	return a, nil
}

// extractOwnership runs the two-step extraction and falls back to the
// single-call compressed path only when the filing is too large.
func (o *Orchestrator) extractOwnership(ctx context.Context, proxyPath string, a *models.Analysis) error {
	excerpt, err := o.deps.Ownership.Extract(ctx, proxyPath)
	if err == nil {
		if excerpt.Compressed {
			a.CompressedOwnershipSummary = excerpt.Text
		} else {
			a.OwnershipSummary = excerpt.Text
		}
		return nil
	}
	if !domain.IsKind(err, domain.ErrContentTooLarge) {
		return err
	}

	o.logger.Warn("document_too_large_using_compressed_extraction", "document", proxyPath, "error", err)
	text, err := o.deps.Ownership.ExtractCompressed(ctx, proxyPath)
	if err != nil {
		return err
	}
	a.CompressedOwnershipSummary = text
	return nil
}

// ResultsPath is where AnalyzeTicker writes a ticker's float share result.
func (o *Orchestrator) ResultsPath(ticker string) string {
	return filepath.Join(o.opts.ResultsDir, fmt.Sprintf("float_analysis_%s.json", strings.ToUpper(ticker)))
}

// AnalyzeTicker resolves, downloads and analyzes a ticker's latest proxy.
// It never returns an error: failures become an error outcome whose
// message is the error text.
func (o *Orchestrator) AnalyzeTicker(ctx context.Context, ticker string) models.CompanyOutcome {
	outcome, _ := o.AnalyzeTickerDetailed(ctx, ticker)
	return outcome
}

// AnalyzeTickerDetailed is AnalyzeTicker that also returns the intermediate
// analysis texts. The analysis is nil when the outcome is an error.
func (o *Orchestrator) AnalyzeTickerDetailed(ctx context.Context, ticker string) (outcome models.CompanyOutcome, analysis *models.Analysis) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("company_panicked", "ticker", ticker, "panic", r)
			outcome = models.CompanyOutcome{Ticker: ticker, Status: models.StatusError, Message: fmt.Sprint(r)}
			analysis = nil
		}
	}()

	results, analysis, err := o.analyzeTicker(ctx, ticker)
	if err != nil {
		o.logger.Error("company_failed", "ticker", ticker, "error", err)
		return models.CompanyOutcome{Ticker: ticker, Status: models.StatusError, Message: err.Error()}, nil
	}
	return models.CompanyOutcome{Ticker: ticker, Status: models.StatusSuccess, Results: results}, analysis
}

func (o *Orchestrator) analyzeTicker(ctx context.Context, ticker string) (*models.CompanyResults, *models.Analysis, error) {
	filing, err := o.deps.Filings.ProxyFiling(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	o.logger.Info("filing_resolved", "ticker", ticker, "company", filing.CompanyName, "filing_date", filing.FilingDateString(), "url", filing.URL)

	proxyPath, err := o.deps.Filings.Download(ctx, filing, o.opts.AssetDir)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := o.AnalyzeDocuments(ctx, o.opts.MethodologyDocument, proxyPath, o.ResultsPath(ticker))
	if err != nil {
		return nil, nil, err
	}

	return &models.CompanyResults{
		FloatShareResult: *analysis.FloatShare,
		Ticker:           ticker,
		CompanyName:      filing.CompanyName,
		FilingDate:       filing.FilingDateString(),
		FilingURL:        filing.URL,
	}, analysis, nil
}

// =============================================================================
// BATCH
// =============================================================================

// BatchOptions selects the companies of a batch run. Explicit Tickers win;
// otherwise the first Limit constituents are used (0 means all).
type BatchOptions struct {
	Tickers []string
	Limit   int
}

// RunBatch analyzes companies one at a time and writes the aggregate once
// at the end. Per-company failures never abort the run. A cancelled context
// stops the iteration; outcomes gathered so far are still written.
func (o *Orchestrator) RunBatch(ctx context.Context, opts BatchOptions) (*models.BatchResult, string, error) {
	tickers, err := o.batchTickers(ctx, opts)
	if err != nil {
		return nil, "", err
	}

	started := o.now()
	batch := &models.BatchResult{
		RunID:        o.newRunID(),
		AnalysisDate: started,
		Companies:    make(map[string]models.CompanyOutcome, len(tickers)),
	}
	o.logger.Info("batch_started", "run_id", batch.RunID, "companies", len(tickers))

	var ctxErr error
	for i, ticker := range tickers {
		if ctxErr = ctx.Err(); ctxErr != nil {
			o.logger.Warn("batch_interrupted", "run_id", batch.RunID, "completed", i, "error", ctxErr)
			break
		}
		o.logger.Info("analyzing_company", "run_id", batch.RunID, "ticker", ticker, "position", i+1, "total", len(tickers))
		batch.Record(o.AnalyzeTicker(ctx, ticker))
	}

	path := filepath.Join(o.opts.ResultsDir, fmt.Sprintf("batch_analysis_%s.json", started.Format("20060102_150405")))
	if err := floatcalc.WriteJSON(batch, path); err != nil {
		return batch, "", err
	}

	o.logger.Info("batch_complete",
		"run_id", batch.RunID,
		"total", batch.TotalCompanies,
		"successful", batch.SuccessfulAnalyses,
		"failed", batch.FailedAnalyses,
		"path", path,
	)
	return batch, path, ctxErr
}

func (o *Orchestrator) batchTickers(ctx context.Context, opts BatchOptions) ([]string, error) {
	if tickers := uniqueTickers(opts.Tickers); len(tickers) > 0 {
		return tickers, nil
	}

	if o.deps.Constituents == nil {
		return nil, domain.WrapError(domain.ErrValidation, "pipeline.batch", fmt.Errorf("no tickers given and no constituent source"))
	}
	companies, err := o.deps.Constituents.Fetch(ctx, o.opts.Index)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && opts.Limit < len(companies) {
		companies = companies[:opts.Limit]
	}
	tickers := make([]string, 0, len(companies))
	for _, c := range companies {
		tickers = append(tickers, c.Ticker)
	}
	return uniqueTickers(tickers), nil
}

// uniqueTickers upper-cases and trims tickers, dropping blanks and repeats.
// Outcomes are keyed by ticker, so each ticker is analyzed once.
func uniqueTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
