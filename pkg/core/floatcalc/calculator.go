// Package floatcalc turns the ownership, methodology and D+O rule texts into
// one schema-constrained float share result.
package floatcalc

import (
	"context"
	"encoding/json"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"google.golang.org/genai"
)

const CalculationPrompt = `You are an AI that ONLY outputs json format. No explanation, no words.

Task: Calculate adjusted float shares percentage using S&P methodology and proxy data.
Rules: Consider 5% rule for D+O holders. Assume no board representation from asset managers such as Vanguard, BlackRock, etc., unless the filing states otherwise.

Output every property of the response schema that the documents support. All values are plain numbers; percentages are expressed as numbers between 0 and 100.`

// field pairs a JSON key with the label used in the methodology's own terms.
type field struct {
	key      string
	label    string
	required bool
}

var fields = []field{
	{"total_shares_outstanding", "Total Shares Outstanding", true},
	{"officers_directors_shares", "Officers, Directors, and related individuals (O+D) Shares", false},
	{"five_percent_individual_shares", "Individual person with a 5% or greater stake Shares", false},
	{"private_equity_vc_shares", "Private Equity, Venture Capital, and Special Equity Firms Shares", false},
	{"asset_manager_board_rep_shares", "Asset Managers and Insurance Companies with direct board representation Shares", false},
	{"public_company_shares", "Publicly Traded Company Shares", false},
	{"restricted_shares", "Restricted Shares", false},
	{"employee_plan_shares", "Employee Plans Shares", false},
	{"foundation_government_endowment_shares", "Foundations, Government Entities, and Endowments Shares", false},
	{"sovereign_wealth_fund_shares", "Sovereign Wealth Funds Shares", false},
	{"od_shares_percentage", "(O+D) Shares percentage", true},
	{"od_strategic_shares", "(O+D) Shares as Strategic Shares", true},
	{"total_strategic_shares_excluded", "Total Strategic Shares to Exclude", true},
	{"float_shares", "Float Shares", true},
	{"adjusted_float_share_percentage", "Adjusted float share percentage", true},
}

// Schema returns the response schema for the calculation call.
func Schema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(fields))
	order := make([]string, 0, len(fields))
	var required []string
	for _, f := range fields {
		props[f.key] = &genai.Schema{Type: genai.TypeNumber, Description: f.label}
		order = append(order, f.key)
		if f.required {
			required = append(required, f.key)
		}
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		PropertyOrdering: order,
		Required:         required,
	}
}

type Calculator struct {
	gen         llm.Generator
	temperature float32
	logger      *slog.Logger
}

func NewCalculator(gen llm.Generator, temperature float32, logger *slog.Logger) *Calculator {
	return &Calculator{gen: gen, temperature: temperature, logger: logging.OrDefault(logger)}
}

// Compute issues exactly one JSON-mode generation call. The response must
// be valid JSON; completeness is left to consumers (see FloatShareResult.Validate).
func (c *Calculator) Compute(ctx context.Context, ownership, methodology, dnoRule string) (*models.FloatShareResult, error) {
	c.logger.Info("calculating_float_share", "ownership_chars", len(ownership))

	text, err := c.gen.Generate(ctx, llm.Request{
		Parts: []llm.Part{
			llm.Text(CalculationPrompt),
			llm.Text(ownership),
			llm.Text(methodology),
			llm.Text(dnoRule),
		},
		Temperature: c.temperature,
		Mode:        llm.OutputJSON,
		Schema:      Schema(),
	})
	if err != nil {
		return nil, fmt.Errorf("float share calculation failed: %w", err)
	}
	return Parse(text)
}

// Parse decodes a calculation response. The text must be a syntactically
// valid JSON object; no fence stripping, no repair. Field values are not
// type-checked: a known key whose value is not a number is left absent.
func Parse(text string) (*models.FloatShareResult, error) {
	if !json.Valid([]byte(text)) {
		return nil, domain.WrapError(domain.ErrParse, "floatcalc.parse",
			fmt.Errorf("failed to parse float share JSON: invalid JSON"))
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil || raw == nil {
		return nil, domain.WrapError(domain.ErrParse, "floatcalc.parse",
			fmt.Errorf("failed to parse float share JSON: top-level value is not an object"))
	}

	numbers := make(map[string]float64, len(fields))
	for _, f := range fields {
		var v *float64
		if value, ok := raw[f.key]; ok && json.Unmarshal(value, &v) == nil && v != nil {
			numbers[f.key] = *v
		}
	}
	// Round-trip through the struct tags so the key mapping lives in one place.
	data, err := json.Marshal(numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode float share fields: %w", err)
	}
	var result models.FloatShareResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode float share fields: %w", err)
	}
	return &result, nil
}

// Persist writes result to path as 2-space indented JSON, replacing any
// previous content.
func (c *Calculator) Persist(result *models.FloatShareResult, path string) error {
	if err := WriteJSON(result, path); err != nil {
		return err
	}
	c.logger.Info("results_saved", "path", path)
	return nil
}

// WriteJSON writes v to path as 2-space indented JSON, creating the parent
// directory when needed.
func WriteJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", path, err)
	}
	return nil
}
