package main

import (
	"errors"
	"float_share/pkg/core/report"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	htmlPath string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Analyze the float share of one company from its latest proxy",
	Long: "Resolves the ticker's latest DEF 14A filing on SEC EDGAR, downloads it,\n" +
		"extracts ownership disclosures and computes the adjusted float share.\n" +
		"The result is written to float_analysis_{TICKER}.json in the results dir.",
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var analyzeDocsFlags struct {
	proxyPath       string
	methodologyPath string
	outputPath      string
}

var analyzeDocsCmd = &cobra.Command{
	Use:   "analyze-docs",
	Short: "Analyze a local proxy document against the methodology",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzeDocs,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFlags.htmlPath, "html", "", "Also write an HTML report to this file")

	f := analyzeDocsCmd.Flags()
	f.StringVar(&analyzeDocsFlags.proxyPath, "proxy", "", "Path to the proxy document (required)")
	f.StringVar(&analyzeDocsFlags.methodologyPath, "methodology", "", "Path to the S&P methodology document (default from config)")
	f.StringVar(&analyzeDocsFlags.outputPath, "output", "float_share_analysis.json", "Where to write the float share JSON")
	_ = analyzeDocsCmd.MarkFlagRequired("proxy")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newAnalyzer(cmd.Context())
	if err != nil {
		return err
	}

	ticker := strings.ToUpper(strings.TrimSpace(args[0]))
	outcome, analysis := a.AnalyzeTickerDetailed(cmd.Context(), ticker)
	if !outcome.Succeeded() {
		return errors.New(outcome.Message)
	}

	res := outcome.Results
	cmd.Printf("Company:     %s (%s)\n", res.CompanyName, res.Ticker)
	cmd.Printf("Filing date: %s\n", res.FilingDate)
	cmd.Printf("Filing URL:  %s\n\n", res.FilingURL)
	cmd.Println(report.FloatShareSummary(&res.FloatShareResult))

	if analyzeFlags.htmlPath != "" {
		title := fmt.Sprintf("Float Share Analysis: %s", res.CompanyName)
		if err := writeHTML(analyzeFlags.htmlPath, title, report.AnalysisMarkdown(title, analysis)); err != nil {
			return err
		}
		cmd.Printf("\nHTML report saved to %s\n", analyzeFlags.htmlPath)
	}
	return nil
}

func runAnalyzeDocs(cmd *cobra.Command, _ []string) error {
	methodologyPath := analyzeDocsFlags.methodologyPath
	if methodologyPath == "" {
		methodologyPath = appConfig.Paths.MethodologyDocument
	}

	a, err := newAnalyzer(cmd.Context())
	if err != nil {
		return err
	}
	analysis, err := a.AnalyzeDocuments(cmd.Context(), methodologyPath, analyzeDocsFlags.proxyPath, analyzeDocsFlags.outputPath)
	if err != nil {
		return err
	}

	cmd.Println(report.FloatShareSummary(analysis.FloatShare))
	cmd.Printf("\nResults saved to %s\n", analysis.ResultsFile)
	return nil
}

func writeHTML(path, title, markdown string) error {
	page, err := report.RenderHTML(title, markdown)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
