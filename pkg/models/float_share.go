package models

import (
	"errors"
	"float_share/pkg/core/domain"
	"strings"
)

// FloatShareResult is the structured output of one float calculation.
// Pointer fields distinguish "absent" from zero; the model is trusted verbatim.
type FloatShareResult struct {
	// Required
	TotalSharesOutstanding       *float64 `json:"total_shares_outstanding,omitempty"`
	ODSharesPercentage           *float64 `json:"od_shares_percentage,omitempty"`
	ODStrategicShares            *float64 `json:"od_strategic_shares,omitempty"`
	TotalStrategicSharesExcluded *float64 `json:"total_strategic_shares_excluded,omitempty"`
	FloatShares                  *float64 `json:"float_shares,omitempty"`
	AdjustedFloatSharePercentage *float64 `json:"adjusted_float_share_percentage,omitempty"`

	// Optional breakdown by holder category
	OfficersDirectorsShares             *float64 `json:"officers_directors_shares,omitempty"`
	FivePercentIndividualShares         *float64 `json:"five_percent_individual_shares,omitempty"`
	PrivateEquityVCShares               *float64 `json:"private_equity_vc_shares,omitempty"`
	AssetManagerBoardRepShares          *float64 `json:"asset_manager_board_rep_shares,omitempty"`
	PublicCompanyShares                 *float64 `json:"public_company_shares,omitempty"`
	RestrictedShares                    *float64 `json:"restricted_shares,omitempty"`
	EmployeePlanShares                  *float64 `json:"employee_plan_shares,omitempty"`
	FoundationGovernmentEndowmentShares *float64 `json:"foundation_government_endowment_shares,omitempty"`
	SovereignWealthFundShares           *float64 `json:"sovereign_wealth_fund_shares,omitempty"`
}

// RequiredFloatFields lists the JSON keys every successful result must carry.
var RequiredFloatFields = []string{
	"total_shares_outstanding",
	"od_shares_percentage",
	"od_strategic_shares",
	"total_strategic_shares_excluded",
	"float_shares",
	"adjusted_float_share_percentage",
}

func (r *FloatShareResult) required() map[string]*float64 {
	return map[string]*float64{
		"total_shares_outstanding":        r.TotalSharesOutstanding,
		"od_shares_percentage":            r.ODSharesPercentage,
		"od_strategic_shares":             r.ODStrategicShares,
		"total_strategic_shares_excluded": r.TotalStrategicSharesExcluded,
		"float_shares":                    r.FloatShares,
		"adjusted_float_share_percentage": r.AdjustedFloatSharePercentage,
	}
}

// MissingRequired returns the required keys that are absent, in schema order.
func (r *FloatShareResult) MissingRequired() []string {
	if r == nil {
		return append([]string(nil), RequiredFloatFields...)
	}
	fields := r.required()
	var missing []string
	for _, key := range RequiredFloatFields {
		if fields[key] == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

// Validate reports missing required fields. Parsing never calls this;
// consumers decide whether an incomplete result is acceptable.
func (r *FloatShareResult) Validate() error {
	missing := r.MissingRequired()
	if len(missing) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrValidation, "float_share.validate",
		errors.New("missing required fields: "+strings.Join(missing, ", ")))
}
