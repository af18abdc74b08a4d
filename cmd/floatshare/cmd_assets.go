package main

import (
	"float_share/pkg/core/artifact"
	"float_share/pkg/core/docassets"
	"float_share/pkg/core/report"
	"fmt"

	"github.com/spf13/cobra"
)

var methodologyFlags struct {
	docPath string
}

var methodologyCmd = &cobra.Command{
	Use:   "methodology",
	Short: "Print the S&P methodology summary and the D+O rule",
	Long: "Summarizes the float adjustment methodology document. Results are cached\n" +
		"as analysis artifacts in the asset dir and reused on later runs.",
	Args: cobra.NoArgs,
	RunE: runMethodology,
}

var artifactsFlags struct {
	kind string
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List cached analysis artifacts",
	Args:  cobra.NoArgs,
	RunE:  runArtifacts,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List downloaded proxy documents and storage usage",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

var cleanupFlags struct {
	days int
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove downloaded proxy documents older than N days",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

func init() {
	methodologyCmd.Flags().StringVar(&methodologyFlags.docPath, "doc", "", "Methodology document (default from config)")
	artifactsCmd.Flags().StringVar(&artifactsFlags.kind, "kind", "", "Only list this kind: methodology or dno_rule")
	cleanupCmd.Flags().IntVar(&cleanupFlags.days, "days", docassets.DefaultMaxAgeDays, "Maximum age in days")
}

func runMethodology(cmd *cobra.Command, _ []string) error {
	doc := methodologyFlags.docPath
	if doc == "" {
		doc = appConfig.Paths.MethodologyDocument
	}

	m, err := newMethodology(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := m.Summary(cmd.Context(), doc)
	if err != nil {
		return err
	}
	rule, err := m.DnoRule(cmd.Context(), doc)
	if err != nil {
		return err
	}

	cmd.Println("S&P Float Methodology Summary")
	cmd.Println(artifact.Delimiter)
	cmd.Println(report.CleanMarkdown(summary))
	cmd.Println()
	cmd.Println("D+O 5% Rule")
	cmd.Println(artifact.Delimiter)
	cmd.Println(report.CleanMarkdown(rule))
	return nil
}

func runArtifacts(cmd *cobra.Command, _ []string) error {
	kind := artifactsFlags.kind
	if kind != "" && kind != artifact.KindMethodology && kind != artifact.KindDnoRule {
		return fmt.Errorf("unknown artifact kind %q", kind)
	}

	store := newArtifactStore()
	entries, err := store.List(kind)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Printf("No analysis artifacts in %s\n", store.Dir())
		return nil
	}
	for _, e := range entries {
		cmd.Printf("%-20s %-12s %s  %s\n", e.Document, e.Kind, e.Created.Format("2006-01-02 15:04:05"), e.Path)
	}
	return nil
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	m := newAssetManager()
	docs, err := m.List()
	if err != nil {
		return err
	}
	for _, d := range docs {
		pages := "-"
		if d.Pages != nil {
			pages = fmt.Sprint(*d.Pages)
		}
		cmd.Printf("%-50s %10d bytes  %5s pages  %s\n", d.Name, d.SizeBytes, pages, d.Modified.Format("2006-01-02 15:04"))
	}

	usage, err := m.Usage()
	if err != nil {
		return err
	}
	cmd.Printf("%d proxy documents; %d files, %.2f MB in %s\n", len(docs), usage.Files, usage.TotalMB(), usage.Directory)
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	removed, err := newAssetManager().Cleanup(cleanupFlags.days)
	if err != nil {
		return err
	}
	for _, name := range removed {
		cmd.Printf("removed %s\n", name)
	}
	cmd.Printf("Removed %d documents older than %d days\n", len(removed), cleanupFlags.days)
	return nil
}
