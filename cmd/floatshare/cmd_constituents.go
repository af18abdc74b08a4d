package main

import (
	"encoding/csv"
	"float_share/pkg/core/constituents"
	"float_share/pkg/models"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var constituentsFlags struct {
	index   string
	csvPath string
}

var constituentsCmd = &cobra.Command{
	Use:   "constituents",
	Short: "List S&P index constituents with their SEC identifiers",
	Args:  cobra.NoArgs,
	RunE:  runConstituents,
}

var filingURLCmd = &cobra.Command{
	Use:   "filing-url TICKER",
	Short: "Show the latest DEF 14A filing for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilingURL,
}

func init() {
	f := constituentsCmd.Flags()
	f.StringVar(&constituentsFlags.index, "index", constituents.IndexSP500, "Index: sp500, sp400, sp600 or sp1500")
	f.StringVar(&constituentsFlags.csvPath, "csv", "", "Write the full list as CSV to this file")
}

func runConstituents(cmd *cobra.Command, _ []string) error {
	companies, err := newConstituentSource().Fetch(cmd.Context(), strings.ToLower(constituentsFlags.index))
	if err != nil {
		return err
	}

	if constituentsFlags.csvPath != "" {
		f, err := os.Create(constituentsFlags.csvPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", constituentsFlags.csvPath, err)
		}
		if err := writeCSV(f, companies); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		cmd.Printf("Saved %d constituents to %s\n", len(companies), constituentsFlags.csvPath)
		return nil
	}

	cmd.Printf("%d constituents in %s\n", len(companies), constituentsFlags.index)
	for _, c := range companies {
		cmd.Printf("%-8s %-10s %-8s %s\n", c.Ticker, c.CIK, c.Exchange, c.Name)
	}
	return nil
}

func writeCSV(w io.Writer, companies []models.Company) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ticker", "name", "cik", "sector", "sub_industry", "exchange", "index"}); err != nil {
		return err
	}
	for _, c := range companies {
		if err := cw.Write([]string{c.Ticker, c.Name, c.CIK, c.Sector, c.SubIndustry, c.Exchange, c.Index}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func runFilingURL(cmd *cobra.Command, args []string) error {
	filing, err := newFilingLookup().ProxyFiling(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Company:     %s\n", filing.CompanyName)
	cmd.Printf("CIK:         %s\n", filing.CIK)
	cmd.Printf("Form:        %s\n", filing.Form)
	cmd.Printf("Filing date: %s\n", filing.FilingDateString())
	cmd.Printf("Accession:   %s\n", filing.AccessionNumber)
	cmd.Printf("URL:         %s\n", filing.URL)
	return nil
}
