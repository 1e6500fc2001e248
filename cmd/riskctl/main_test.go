package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigCheckPrintsEffectiveConfig(t *testing.T) {
	path := writeTemp(t, "risk.yaml", "risk:\n  high_risk_threshold: 70\n")

	out, err := runCmd(t, "config", "check", path)
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 70.0, cfg["high_risk_threshold"])
	assert.Equal(t, 30.0, cfg["medium_risk_threshold"])
}

func TestConfigCheckWithProfile(t *testing.T) {
	path := writeTemp(t, "risk.yaml", "risk:\n  unusual_address_weight: 12\n")

	out, err := runCmd(t, "config", "check", "--profile", "holiday", path)
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 5.0, cfg["multiple_orders_threshold"])
	assert.Equal(t, 12.0, cfg["unusual_address_weight"])
}

func TestConfigCheckRejectsInvalidFile(t *testing.T) {
	path := writeTemp(t, "risk.yaml", "risk:\n  medium_risk_threshold: 80\n  high_risk_threshold: 40\n")

	_, err := runCmd(t, "config", "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid risk config")
}

func TestConfigCheckRejectsMisspelledKey(t *testing.T) {
	path := writeTemp(t, "risk.yaml", "risk:\n  high_risk_treshold: 90\n")

	_, err := runCmd(t, "config", "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high_risk_treshold")
}

func TestConfigProfiles(t *testing.T) {
	out, err := runCmd(t, "config", "profiles")
	require.NoError(t, err)
	assert.Equal(t, []string{"holiday", "standard"}, strings.Fields(out))
}

const evalOrder = `{
  "id": "o-1",
  "customer_id": "c-1",
  "created_at": "2026-03-10T14:00:00Z",
  "items": [{"unit_price": 250, "quantity": 2}],
  "delivery_address": {"zip_code": "02000-000", "number": "99"},
  "payment_method": {"type": "credit_card"}
}`

const evalHistory = `[
  {"id": "h-1", "created_at": "2026-03-10T13:00:00Z", "total": 50,
   "delivery_address": {"zip_code": "01000-000", "number": "10"}, "payment_method": {"type": "pix"}},
  {"id": "h-2", "created_at": "2026-03-10T12:00:00Z", "total": 50,
   "delivery_address": {"zip_code": "01000-000", "number": "10"}, "payment_method": {"type": "pix"}},
  {"id": "h-3", "created_at": "2026-03-10T10:00:00Z", "total": 50,
   "delivery_address": {"zip_code": "01000-000", "number": "10"}, "payment_method": {"type": "pix"}}
]`

type evalResult struct {
	Result struct {
		RiskScore   float64  `json:"risk_score"`
		RiskLevel   string   `json:"risk_level"`
		FlagsRaised []string `json:"flags_raised"`
	} `json:"result"`
	Review struct {
		RequiresReview bool     `json:"requires_review"`
		NotifySecurity bool     `json:"notify_security"`
		MatchedRules   []string `json:"matched_rules"`
	} `json:"review"`
	Error string `json:"error"`
}

func TestEvaluateHighRisk(t *testing.T) {
	order := writeTemp(t, "order.json", evalOrder)
	history := writeTemp(t, "history.json", evalHistory)

	out, err := runCmd(t, "evaluate", "--order", order, "--history", history)
	require.NoError(t, err)

	var res evalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 90.0, res.Result.RiskScore)
	assert.Equal(t, "high", res.Result.RiskLevel)
	assert.Equal(t, []string{
		"multiple_orders_short_period",
		"unusual_delivery_address",
		"high_value_order",
		"unusual_payment_method",
		"rapid_address_change",
	}, res.Result.FlagsRaised)
	assert.True(t, res.Review.RequiresReview)
	assert.True(t, res.Review.NotifySecurity)
	assert.Empty(t, res.Error)
}

func TestEvaluateWithBaselineAndProfile(t *testing.T) {
	order := writeTemp(t, "order.json", evalOrder)
	history := writeTemp(t, "history.json", evalHistory)

	out, err := runCmd(t, "evaluate", "--order", order, "--history", history,
		"--baseline", "400", "--profile", "holiday")
	require.NoError(t, err)

	var res evalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	// The holiday velocity threshold of 5 and the baseline of 400 clear two signals.
	assert.Equal(t, 45.0, res.Result.RiskScore)
	assert.Equal(t, "medium", res.Result.RiskLevel)
	assert.True(t, res.Review.RequiresReview)
	assert.False(t, res.Review.NotifySecurity)
	assert.Equal(t, []string{"medium_risk_new_payment"}, res.Review.MatchedRules)
}

func TestEvaluateWithoutHistory(t *testing.T) {
	order := writeTemp(t, "order.json", evalOrder)

	out, err := runCmd(t, "evaluate", "--order", order)
	require.NoError(t, err)

	var res evalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0.0, res.Result.RiskScore)
	assert.Equal(t, "low", res.Result.RiskLevel)
	assert.Empty(t, res.Result.FlagsRaised)
}

func TestEvaluateRequiresOrder(t *testing.T) {
	_, err := runCmd(t, "evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order")
}

func TestEvaluateRejectsBadNow(t *testing.T) {
	order := writeTemp(t, "order.json", evalOrder)
	_, err := runCmd(t, "evaluate", "--order", order, "--now", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--now")
}
