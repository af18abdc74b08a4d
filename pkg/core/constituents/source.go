// Package constituents builds the S&P 400/500/600 constituent lists from the
// Wikipedia index pages, joined with SEC ticker listings for CIK and exchange.
package constituents

import (
	"context"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/edgar"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	IndexSP500  = "sp500"
	IndexSP400  = "sp400"
	IndexSP600  = "sp600"
	IndexSP1500 = "sp1500"

	WikipediaURL = "https://en.wikipedia.org/wiki/List_of_S%%26P_%s_companies"
)

// Indexes lists the component indexes of the S&P 1500 in concatenation order.
var Indexes = []string{IndexSP500, IndexSP400, IndexSP600}

// ListingSource provides SEC ticker listings (see edgar.Client.Listings).
type ListingSource interface {
	Listings(ctx context.Context) ([]edgar.Listing, error)
}

// Source fetches and merges constituent tables.
type Source struct {
	http     *http.Client
	listings ListingSource
	pageURL  string // format string taking "500", "400" or "600"
	logger   *slog.Logger
}

func NewSource(listings ListingSource, logger *slog.Logger) *Source {
	return &Source{
		http:     &http.Client{Timeout: 30 * time.Second},
		listings: listings,
		pageURL:  WikipediaURL,
		logger:   logging.OrDefault(logger),
	}
}

// Fetch returns the constituents of one index. IndexSP1500 concatenates
// the 500, 400 and 600 lists in that order.
func (s *Source) Fetch(ctx context.Context, index string) ([]models.Company, error) {
	if index == IndexSP1500 {
		return s.FetchSP1500(ctx)
	}
	companies, err := s.fetchTable(ctx, index)
	if err != nil {
		return nil, err
	}
	return s.merge(ctx, companies)
}

func (s *Source) FetchSP1500(ctx context.Context) ([]models.Company, error) {
	var all []models.Company
	for _, index := range Indexes {
		companies, err := s.fetchTable(ctx, index)
		if err != nil {
			return nil, err
		}
		all = append(all, companies...)
	}
	s.logger.Info("constituents_fetched", "index", IndexSP1500, "count", len(all))
	return s.merge(ctx, all)
}

func (s *Source) fetchTable(ctx context.Context, index string) ([]models.Company, error) {
	series, ok := strings.CutPrefix(index, "sp")
	if !ok || (series != "500" && series != "400" && series != "600") {
		return nil, domain.WrapError(domain.ErrValidation, "constituents.fetch", fmt.Errorf("unknown index %q", index))
	}

	url := fmt.Sprintf(s.pageURL, series)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", edgar.DefaultUserAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnection, "constituents.fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.WrapError(domain.ErrTransient, "constituents.fetch", fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParse, "constituents.fetch", err)
	}
	companies, err := ParseTable(doc, index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("constituents_fetched", "index", index, "count", len(companies))
	return companies, nil
}

// ParseTable reads table#constituents (or the first wikitable) from a page.
// Columns are located by header text, so column order does not matter.
func ParseTable(doc *goquery.Document, index string) ([]models.Company, error) {
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, domain.WrapError(domain.ErrParse, "constituents.parse", fmt.Errorf("no constituents table for %s", index))
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return nil, domain.WrapError(domain.ErrParse, "constituents.parse", fmt.Errorf("constituents table for %s is empty", index))
	}
	col := map[string]int{}
	rows.First().Find("th, td").Each(func(j int, cell *goquery.Selection) {
		col[normalizeHeader(cell.Text())] = j
	})

	symbolCol, ok := col["symbol"]
	if !ok {
		return nil, domain.WrapError(domain.ErrParse, "constituents.parse", fmt.Errorf("no Symbol column for %s", index))
	}
	nameCol, ok := col["security"]
	if !ok {
		nameCol, ok = col["company"]
	}
	if !ok {
		nameCol = -1
	}

	lookup := func(cells []string, name string) string {
		j, ok := col[name]
		if !ok || j >= len(cells) {
			return ""
		}
		return cells[j]
	}

	var companies []models.Company
	rows.Slice(1, rows.Length()).Each(func(i int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(j int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if symbolCol >= len(cells) || cells[symbolCol] == "" {
			return
		}

		c := models.Company{
			Ticker:      strings.ToUpper(cells[symbolCol]),
			Sector:      lookup(cells, "gics sector"),
			SubIndustry: lookup(cells, "gics sub-industry"),
			Index:       index,
		}
		if nameCol >= 0 && nameCol < len(cells) {
			c.Name = cells[nameCol]
		}
		if cik := lookup(cells, "cik"); cik != "" {
			c.CIK = edgar.PadCIK(cik)
		}
		companies = append(companies, c)
	})

	if len(companies) == 0 {
		return nil, domain.WrapError(domain.ErrParse, "constituents.parse", fmt.Errorf("constituents table for %s is empty", index))
	}
	return companies, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	// Strip footnote markers like "Symbol[1]".
	if i := strings.Index(h, "["); i > 0 {
		h = h[:i]
	}
	return strings.ToLower(strings.TrimSpace(h))
}

// merge joins companies with SEC listings: by normalized ticker first, then
// by CIK. Unmatched companies are kept with what the page provided.
func (s *Source) merge(ctx context.Context, companies []models.Company) ([]models.Company, error) {
	if s.listings == nil {
		return companies, nil
	}
	listings, err := s.listings.Listings(ctx)
	if err != nil {
		return nil, err
	}

	byTicker := make(map[string]edgar.Listing, len(listings))
	byCIK := make(map[string]edgar.Listing, len(listings))
	for _, l := range listings {
		byTicker[l.Ticker] = l
		if _, seen := byCIK[l.CIK]; !seen {
			byCIK[l.CIK] = l
		}
	}

	unmatched := 0
	out := make([]models.Company, len(companies))
	for i, c := range companies {
		l, ok := byTicker[edgar.NormalizeTicker(c.Ticker)]
		if !ok && c.CIK != "" {
			l, ok = byCIK[c.CIK]
		}
		if ok {
			c.CIK = l.CIK
			c.Exchange = l.Exchange
			if c.Name == "" {
				c.Name = l.Name
			}
		} else {
			unmatched++
		}
		out[i] = c
	}

	s.logger.Info("constituents_merged", "total", len(out), "unmatched", unmatched)
	return out, nil
}
