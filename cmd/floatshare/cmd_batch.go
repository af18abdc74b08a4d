package main

import (
	"float_share/pkg/core/pipeline"
	"float_share/pkg/core/report"
	"fmt"

	"github.com/spf13/cobra"
)

var batchFlags struct {
	limit    int
	tickers  []string
	htmlPath string
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze many companies and write one aggregate result",
	Long: "Runs the single-company analysis for each ticker in turn. With no\n" +
		"--tickers, the first --limit S&P 500 constituents are used (0 means all).\n" +
		"Repeated tickers are analyzed once.\n" +
		"A failing company is recorded and the run continues.",
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.IntVar(&batchFlags.limit, "limit", 5, "Number of constituents to analyze (0 = all)")
	f.StringSliceVar(&batchFlags.tickers, "tickers", nil, "Comma-separated tickers to analyze instead of constituents")
	f.StringVar(&batchFlags.htmlPath, "html", "", "Also write an HTML summary to this file")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	a, err := newAnalyzer(cmd.Context())
	if err != nil {
		return err
	}

	batch, path, err := a.RunBatch(cmd.Context(), pipeline.BatchOptions{
		Tickers: batchFlags.tickers,
		Limit:   batchFlags.limit,
	})
	if batch == nil {
		return err
	}

	cmd.Printf("Run %s: %d companies, %d successful, %d failed\n",
		batch.RunID, batch.TotalCompanies, batch.SuccessfulAnalyses, batch.FailedAnalyses)
	if path != "" {
		cmd.Printf("Results saved to %s\n", path)
	}

	if batchFlags.htmlPath != "" {
		title := fmt.Sprintf("Batch Float Share Analysis %s", batch.AnalysisDate.Format("2006-01-02 15:04"))
		if herr := writeHTML(batchFlags.htmlPath, title, report.BatchMarkdown(batch)); herr != nil {
			return herr
		}
		cmd.Printf("HTML summary saved to %s\n", batchFlags.htmlPath)
	}
	return err
}
