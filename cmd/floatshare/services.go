package main

import (
	"context"
	"float_share/pkg/core/artifact"
	"float_share/pkg/core/constituents"
	"float_share/pkg/core/docassets"
	"float_share/pkg/core/edgar"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/methodology"
	"float_share/pkg/core/pipeline"
	"float_share/pkg/models"
)

// analyzer is the slice of pipeline.Orchestrator the commands drive.
type analyzer interface {
	AnalyzeDocuments(ctx context.Context, methodologyPath, proxyPath, resultsPath string) (*models.Analysis, error)
	AnalyzeTickerDetailed(ctx context.Context, ticker string) (models.CompanyOutcome, *models.Analysis)
	RunBatch(ctx context.Context, opts pipeline.BatchOptions) (*models.BatchResult, string, error)
}

type filingLookup interface {
	ProxyFiling(ctx context.Context, ticker string) (*models.Filing, error)
}

// Service factories. Tests replace these.
var (
	newAnalyzer = func(ctx context.Context) (analyzer, error) {
		gen, err := newGenerator(ctx)
		if err != nil {
			return nil, err
		}
		return pipeline.NewOrchestrator(appConfig, gen, newSECClient(), appLogger), nil
	}

	newFilingLookup = func() filingLookup { return newSECClient() }

	newConstituentSource = func() pipeline.ConstituentSource {
		return constituents.NewSource(newSECClient(), appLogger)
	}

	newMethodology = func(ctx context.Context) (pipeline.MethodologySource, error) {
		gen, err := newGenerator(ctx)
		if err != nil {
			return nil, err
		}
		store := artifact.NewFileStore(appConfig.Paths.AssetDir, appLogger)
		return methodology.NewExtractor(gen, store, appConfig.Gemini.Temperature, appLogger), nil
	}
)

func newGenerator(ctx context.Context) (llm.Generator, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}
	return llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:      appConfig.Gemini.APIKey,
		Model:       appConfig.Gemini.Model,
		MaxAttempts: appConfig.Retry.MaxAttempts,
		Delays: llm.RetryDelays{
			NotReady:  appConfig.Retry.NotReadyDelay,
			Transient: appConfig.Retry.TransientDelay,
		},
		Logger: appLogger,
	})
}

func newSECClient() *edgar.Client {
	return edgar.NewClient(edgar.Options{
		UserAgent:         appConfig.SEC.UserAgent,
		RequestsPerSecond: appConfig.SEC.RequestsPerSecond,
		Timeout:           appConfig.SEC.Timeout,
		Logger:            appLogger,
	})
}

func newArtifactStore() *artifact.FileStore {
	return artifact.NewFileStore(appConfig.Paths.AssetDir, appLogger)
}

func newAssetManager() *docassets.Manager {
	return docassets.NewManager(appConfig.Paths.AssetDir, appLogger)
}
