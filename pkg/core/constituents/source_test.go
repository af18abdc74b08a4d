package constituents

import (
	"context"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/edgar"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockListings struct {
	ListingsFunc func(ctx context.Context) ([]edgar.Listing, error)
}

func (m *MockListings) Listings(ctx context.Context) ([]edgar.Listing, error) {
	if m.ListingsFunc != nil {
		return m.ListingsFunc(ctx)
	}
	return nil, nil
}

func page(rows string) string {
	return `<html><body>
<table class="wikitable sortable" id="constituents">
<tbody>
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th><th>Headquarters Location</th><th>CIK</th></tr>
` + rows + `
</tbody></table>
<table class="wikitable" id="changes"><tr><th>Date</th></tr><tr><td>x</td></tr></table>
</body></html>`
}

const sp500Rows = `
<tr><td><a href="#">AAPL</a></td><td>Apple Inc.</td><td>Information Technology</td><td>Technology Hardware</td><td>Cupertino</td><td>320193</td></tr>
<tr><td>BRK.B</td><td>Berkshire Hathaway</td><td>Financials</td><td>Multi-Sector Holdings</td><td>Omaha</td><td>1067983</td></tr>
`

// --- Tests ---

func TestParseTable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page(sp500Rows)))
	require.NoError(t, err)

	companies, err := ParseTable(doc, IndexSP500)
	require.NoError(t, err)
	require.Len(t, companies, 2)

	assert.Equal(t, models.Company{
		Ticker:      "AAPL",
		Name:        "Apple Inc.",
		CIK:         "0000320193",
		Sector:      "Information Technology",
		SubIndustry: "Technology Hardware",
		Index:       IndexSP500,
	}, companies[0])
	assert.Equal(t, "BRK.B", companies[1].Ticker)
}

func TestParseTable_CompanyColumnAndFootnotes(t *testing.T) {
	html := `<table class="wikitable"><tr><th>Company</th><th>Symbol[2]</th><th>GICS Sector</th></tr>
<tr><td>Acme Corp</td><td>ACME</td><td>Industrials</td></tr></table>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	companies, err := ParseTable(doc, IndexSP600)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme Corp", companies[0].Name)
	assert.Equal(t, "ACME", companies[0].Ticker)
	assert.Empty(t, companies[0].CIK)
}

func TestParseTable_NoTable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>nothing</p>"))
	require.NoError(t, err)

	_, err = ParseTable(doc, IndexSP400)
	assert.True(t, domain.IsKind(err, domain.ErrParse))
}

func newTestSource(t *testing.T, listings ListingSource, pages map[string]string) *Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	s := NewSource(listings, logging.Discard())
	s.pageURL = srv.URL + "/List_of_S%%26P_%s_companies"
	return s
}

func TestFetch_MergesListings(t *testing.T) {
	listings := &MockListings{ListingsFunc: func(context.Context) ([]edgar.Listing, error) {
		return []edgar.Listing{
			{CIK: "0000320193", Name: "Apple Inc.", Ticker: "AAPL", Exchange: "Nasdaq"},
			{CIK: "0001067983", Name: "BERKSHIRE HATHAWAY INC", Ticker: "BRK-B", Exchange: "NYSE"},
		}, nil
	}}
	s := newTestSource(t, listings, map[string]string{
		"/List_of_S&P_500_companies": page(sp500Rows),
	})

	companies, err := s.Fetch(context.Background(), IndexSP500)
	require.NoError(t, err)
	require.Len(t, companies, 2)

	assert.Equal(t, "Nasdaq", companies[0].Exchange)
	assert.Equal(t, "BRK.B", companies[1].Ticker, "page ticker is kept")
	assert.Equal(t, "NYSE", companies[1].Exchange, "joined through the normalized ticker")
	assert.Equal(t, "0001067983", companies[1].CIK)
}

func TestFetch_FallsBackToCIK(t *testing.T) {
	listings := &MockListings{ListingsFunc: func(context.Context) ([]edgar.Listing, error) {
		return []edgar.Listing{{CIK: "0000320193", Name: "Apple Inc.", Ticker: "AAPL-OLD", Exchange: "Nasdaq"}}, nil
	}}
	s := newTestSource(t, listings, map[string]string{
		"/List_of_S&P_500_companies": page(sp500Rows),
	})

	companies, err := s.Fetch(context.Background(), IndexSP500)
	require.NoError(t, err)
	assert.Equal(t, "Nasdaq", companies[0].Exchange)
	assert.Empty(t, companies[1].Exchange, "unmatched rows are kept as-is")
}

func TestFetchSP1500_Order(t *testing.T) {
	row := func(ticker string) string {
		return "<tr><td>" + ticker + "</td><td>" + ticker + " Inc</td><td>S</td><td>I</td><td>HQ</td><td>1</td></tr>"
	}
	s := newTestSource(t, nil, map[string]string{
		"/List_of_S&P_500_companies": page(row("LARGE")),
		"/List_of_S&P_400_companies": page(row("MID")),
		"/List_of_S&P_600_companies": page(row("SMALL")),
	})

	companies, err := s.Fetch(context.Background(), IndexSP1500)
	require.NoError(t, err)

	var got []string
	for _, c := range companies {
		got = append(got, c.Ticker+"/"+c.Index)
	}
	assert.Equal(t, []string{"LARGE/sp500", "MID/sp400", "SMALL/sp600"}, got)
}

func TestFetch_Errors(t *testing.T) {
	s := newTestSource(t, nil, map[string]string{})

	_, err := s.Fetch(context.Background(), "sp100")
	assert.True(t, domain.IsKind(err, domain.ErrValidation))

	_, err = s.Fetch(context.Background(), IndexSP400)
	assert.True(t, domain.IsKind(err, domain.ErrTransient))

	failing := &MockListings{ListingsFunc: func(context.Context) ([]edgar.Listing, error) {
		return nil, errors.New("sec down")
	}}
	s = newTestSource(t, failing, map[string]string{"/List_of_S&P_500_companies": page(sp500Rows)})
	_, err = s.Fetch(context.Background(), IndexSP500)
	assert.EqualError(t, err, "sec down")
}
