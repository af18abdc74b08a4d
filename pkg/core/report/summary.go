package report

import (
	"float_share/pkg/models"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Placeholder stands in for any field the model did not return.
const Placeholder = "N/A"

// FloatShareSummary renders the headline figures of a result. Missing
// fields, or a nil result, render as Placeholder.
func FloatShareSummary(r *models.FloatShareResult) string {
	if r == nil {
		r = &models.FloatShareResult{}
	}
	var b strings.Builder
	b.WriteString("Float Share Analysis Summary:\n")
	b.WriteString("============================\n")
	fmt.Fprintf(&b, "Total Shares Outstanding: %s\n", Shares(r.TotalSharesOutstanding))
	fmt.Fprintf(&b, "Float Shares: %s\n", Shares(r.FloatShares))
	fmt.Fprintf(&b, "Adjusted Float Share Percentage: %s\n", Percent(r.AdjustedFloatSharePercentage))
	b.WriteString("\nKey Ownership Details:\n")
	fmt.Fprintf(&b, "- Officers & Directors (O+D) Shares: %s\n", Shares(r.OfficersDirectorsShares))
	fmt.Fprintf(&b, "- O+D Percentage: %s\n", Percent(r.ODSharesPercentage))
	fmt.Fprintf(&b, "- O+D Shares as Strategic: %s\n", Shares(r.ODStrategicShares))
	fmt.Fprintf(&b, "- Strategic Shares to Exclude: %s", Shares(r.TotalStrategicSharesExcluded))
	return b.String()
}

// Shares formats a share count with thousands separators.
func Shares(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Placeholder
	}
	return groupThousands(strconv.FormatFloat(*v, 'f', -1, 64))
}

// Percent formats a percentage value as "12.5%".
func Percent(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// AnalysisMarkdown renders one company analysis as a markdown report.
func AnalysisMarkdown(title string, a *models.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Float Share\n\n")
	b.WriteString(resultTable(a.FloatShare))

	b.WriteString("\n## Ownership\n\n")
	if a.CompressedOwnershipSummary != "" {
		b.WriteString("_Compressed extraction._\n\n")
	}
	b.WriteString(CleanMarkdown(a.Ownership()) + "\n")

	b.WriteString("\n## Methodology Summary\n\n")
	b.WriteString(CleanMarkdown(a.MethodologySummary) + "\n")

	b.WriteString("\n## D+O Rule\n\n")
	b.WriteString(CleanMarkdown(a.DnoRule) + "\n")

	b.WriteString("\n## Sources\n\n")
	fmt.Fprintf(&b, "- Methodology document: `%s`\n", a.MethodologyDocument)
	fmt.Fprintf(&b, "- Proxy document: `%s`\n", a.ProxyDocument)
	if a.ResultsFile != "" {
		fmt.Fprintf(&b, "- Results file: `%s`\n", a.ResultsFile)
	}
	return b.String()
}

func resultTable(r *models.FloatShareResult) string {
	if r == nil {
		r = &models.FloatShareResult{}
	}
	rows := []struct {
		label string
		value string
	}{
		{"Total Shares Outstanding", Shares(r.TotalSharesOutstanding)},
		{"O+D Shares", Shares(r.OfficersDirectorsShares)},
		{"O+D Percentage", Percent(r.ODSharesPercentage)},
		{"O+D Shares as Strategic", Shares(r.ODStrategicShares)},
		{"Individuals >= 5%", Shares(r.FivePercentIndividualShares)},
		{"Private Equity / VC", Shares(r.PrivateEquityVCShares)},
		{"Asset Managers with Board Seats", Shares(r.AssetManagerBoardRepShares)},
		{"Publicly Traded Companies", Shares(r.PublicCompanyShares)},
		{"Restricted Shares", Shares(r.RestrictedShares)},
		{"Employee Plans", Shares(r.EmployeePlanShares)},
		{"Foundations / Government / Endowments", Shares(r.FoundationGovernmentEndowmentShares)},
		{"Sovereign Wealth Funds", Shares(r.SovereignWealthFundShares)},
		{"Total Strategic Shares Excluded", Shares(r.TotalStrategicSharesExcluded)},
		{"Float Shares", Shares(r.FloatShares)},
		{"Adjusted Float Share Percentage", Percent(r.AdjustedFloatSharePercentage)},
	}
	var b strings.Builder
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row.label, row.value)
	}
	return b.String()
}

// BatchMarkdown renders a batch run: counts, then one row per company.
func BatchMarkdown(batch *models.BatchResult) string {
	var b strings.Builder
	b.WriteString("# Batch Float Share Analysis\n\n")
	fmt.Fprintf(&b, "- Run ID: `%s`\n", batch.RunID)
	fmt.Fprintf(&b, "- Analysis date: %s\n", batch.AnalysisDate.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Companies: %d (%d succeeded, %d failed)\n\n",
		batch.TotalCompanies, batch.SuccessfulAnalyses, batch.FailedAnalyses)

	b.WriteString("| Ticker | Company | Filing Date | Float % | Status |\n|---|---|---|---|---|\n")
	for _, ticker := range tickersOf(batch) {
		o := batch.Companies[ticker]
		if !o.Succeeded() || o.Results == nil {
			fmt.Fprintf(&b, "| %s | | | %s | error: %s |\n", ticker, Placeholder, tableSafe(o.Message))
			continue
		}
		r := o.Results
		fmt.Fprintf(&b, "| %s | %s | %s | %s | success |\n",
			ticker, tableSafe(r.CompanyName), r.FilingDate, Percent(r.AdjustedFloatSharePercentage))
	}
	return b.String()
}

// tickersOf returns tickers in run order, falling back to sorted order for
// results loaded from disk.
func tickersOf(batch *models.BatchResult) []string {
	if len(batch.Order) == len(batch.Companies) {
		return batch.Order
	}
	tickers := make([]string, 0, len(batch.Companies))
	for t := range batch.Companies {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func tableSafe(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
