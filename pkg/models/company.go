package models

import "time"

// Company is one index constituent.
type Company struct {
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	CIK         string `json:"cik"` // zero-padded to 10 digits
	Sector      string `json:"sector,omitempty"`
	SubIndustry string `json:"sub_industry,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	Index       string `json:"index,omitempty"` // "sp500", "sp400", "sp600"
}

// Filing is a single SEC filing resolved for a company.
type Filing struct {
	Ticker          string    `json:"ticker"`
	CIK             string    `json:"cik"`
	CompanyName     string    `json:"company_name"`
	Form            string    `json:"form"`
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	PrimaryDocument string    `json:"primary_document"`
	URL             string    `json:"url"`
}

// FilingDateString formats the filing date the way SEC reports it.
func (f *Filing) FilingDateString() string {
	if f == nil || f.FilingDate.IsZero() {
		return ""
	}
	return f.FilingDate.Format("2006-01-02")
}
