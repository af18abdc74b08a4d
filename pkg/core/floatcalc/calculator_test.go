package floatcalc

import (
	"context"
	"encoding/json"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Requests     []llm.Request
}

func (m *MockGenerator) Upload(ctx context.Context, path string) (*llm.Document, error) {
	return nil, errors.New("calculator must not upload")
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "{}", nil
}

func respond(text string) func(context.Context, llm.Request) (string, error) {
	return func(context.Context, llm.Request) (string, error) { return text, nil }
}

func f(v float64) *float64 { return &v }

const fullResponse = `{
  "total_shares_outstanding": 1000000,
  "officers_directors_shares": 80000,
  "od_shares_percentage": 8,
  "od_strategic_shares": 80000,
  "total_strategic_shares_excluded": 120000,
  "float_shares": 880000,
  "adjusted_float_share_percentage": 88,
  "restricted_shares": 40000
}`

func TestCompute_SingleJSONCall(t *testing.T) {
	gen := &MockGenerator{GenerateFunc: respond(fullResponse)}
	c := NewCalculator(gen, 0, logging.Discard())

	got, err := c.Compute(context.Background(), "ownership text", "methodology text", "dno text")
	require.NoError(t, err)

	want := &models.FloatShareResult{
		TotalSharesOutstanding:       f(1000000),
		OfficersDirectorsShares:      f(80000),
		ODSharesPercentage:           f(8),
		ODStrategicShares:            f(80000),
		TotalStrategicSharesExcluded: f(120000),
		FloatShares:                  f(880000),
		AdjustedFloatSharePercentage: f(88),
		RestrictedShares:             f(40000),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, gen.Requests, 1)
	req := gen.Requests[0]
	assert.Equal(t, llm.OutputJSON, req.Mode)
	require.NotNil(t, req.Schema)
	assert.Equal(t, genai.TypeObject, req.Schema.Type)

	var texts []string
	for _, p := range req.Parts {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{CalculationPrompt, "ownership text", "methodology text", "dno text"}, texts)
}

func TestCompute_InvalidJSONIsParseError(t *testing.T) {
	for _, body := range []string{"not json", "```json\n{}\n```", "", "null", "[]", `[{"float_shares": 1}]`, `"text"`, "42"} {
		gen := &MockGenerator{GenerateFunc: respond(body)}
		c := NewCalculator(gen, 0, logging.Discard())

		_, err := c.Compute(context.Background(), "o", "m", "d")
		require.Error(t, err, body)
		assert.True(t, domain.IsKind(err, domain.ErrParse), body)
		assert.Len(t, gen.Requests, 1, "no retry on parse failure")
	}
}

func TestParse_NonNumericValuesLeftAbsent(t *testing.T) {
	got, err := Parse(`{
  "total_shares_outstanding": 1000,
  "float_shares": "1,234",
  "od_shares_percentage": null,
  "restricted_shares": {"class_b": 10},
  "adjusted_float_share_percentage": 88.5,
  "notes": "ignored"
}`)
	require.NoError(t, err)

	want := &models.FloatShareResult{
		TotalSharesOutstanding:       f(1000),
		AdjustedFloatSharePercentage: f(88.5),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, got.MissingRequired(), "float_shares")
}

func TestParse_ZeroIsPresent(t *testing.T) {
	got, err := Parse(`{"od_strategic_shares": 0}`)
	require.NoError(t, err)
	require.NotNil(t, got.ODStrategicShares)
	assert.Zero(t, *got.ODStrategicShares)
}

func TestCompute_MissingRequiredStillParses(t *testing.T) {
	gen := &MockGenerator{GenerateFunc: respond(`{"total_shares_outstanding": 500}`)}
	c := NewCalculator(gen, 0, logging.Discard())

	got, err := c.Compute(context.Background(), "o", "m", "d")
	require.NoError(t, err)
	assert.Equal(t, 500.0, *got.TotalSharesOutstanding)
	assert.Equal(t, []string{
		"od_shares_percentage",
		"od_strategic_shares",
		"total_strategic_shares_excluded",
		"float_shares",
		"adjusted_float_share_percentage",
	}, got.MissingRequired())
	assert.True(t, domain.IsKind(got.Validate(), domain.ErrValidation))
}

func TestCompute_GenerationErrorPropagates(t *testing.T) {
	tooLarge := domain.WrapError(domain.ErrContentTooLarge, "llm.generate", errors.New("too long"))
	gen := &MockGenerator{GenerateFunc: func(context.Context, llm.Request) (string, error) { return "", tooLarge }}
	c := NewCalculator(gen, 0, logging.Discard())

	_, err := c.Compute(context.Background(), "o", "m", "d")
	assert.ErrorIs(t, err, tooLarge)
}

func TestSchema_MatchesResultFields(t *testing.T) {
	schema := Schema()
	assert.Len(t, schema.Properties, 15)
	assert.ElementsMatch(t, models.RequiredFloatFields, schema.Required)
	assert.Len(t, schema.PropertyOrdering, 15)

	// Every schema property must round-trip through the result struct.
	full := map[string]float64{}
	for key := range schema.Properties {
		full[key] = 1
	}
	data, err := json.Marshal(full)
	require.NoError(t, err)
	result, err := Parse(string(data))
	require.NoError(t, err)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	var back map[string]float64
	require.NoError(t, json.Unmarshal(out, &back))

	keys := func(m map[string]float64) []string {
		var ks []string
		for k := range m {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		return ks
	}
	assert.Equal(t, keys(full), keys(back))
}

func TestWriteJSON_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "batch.json")
	require.NoError(t, WriteJSON(map[string]int{"total_companies": 2}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"total_companies\": 2\n}", string(data))
}

func TestPersist_IndentedAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "float_analysis_ABC.json")
	c := NewCalculator(&MockGenerator{}, 0, logging.Discard())

	require.NoError(t, c.Persist(&models.FloatShareResult{FloatShares: f(1), TotalSharesOutstanding: f(2)}, path))
	require.NoError(t, c.Persist(&models.FloatShareResult{FloatShares: f(3)}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"float_shares\": 3\n}", string(data))
}
