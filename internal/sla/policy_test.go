package sla

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
)

func TestResolveBudgetPrecedence(t *testing.T) {
	policy := DefaultPolicy()
	policy.Overrides = append(policy.Overrides, BudgetOverride{
		Type:            domain.TypeBreakdown,
		Priority:        domain.PriorityHigh,
		ResponseMinutes: 30,
	})

	// Exact type+priority override wins over the priority default.
	budget, err := policy.ResolveBudget(domain.TypeBreakdown, domain.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, 30, budget.ResponseMinutes)
	require.Equal(t, 480, budget.ResolutionMinutes, "unset override fields inherit")

	// No override defined: priority default applies.
	budget, err = policy.ResolveBudget(domain.TypePreventive, domain.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, 60, budget.ResponseMinutes)

	// Type override with empty priority matches every priority.
	budget, err = policy.ResolveBudget(domain.TypeSafety, domain.PriorityMedium)
	require.NoError(t, err)
	require.False(t, budget.BusinessHoursOnly)
	require.Equal(t, 240, budget.ResponseMinutes, "minute budgets still come from the priority default")
}

func TestResolveBudgetFallsBackToMedium(t *testing.T) {
	policy := DefaultPolicy()
	delete(policy.Defaults, domain.PriorityLow)

	budget, err := policy.ResolveBudget(domain.TypeBreakdown, domain.PriorityLow)
	require.NoError(t, err)
	require.Equal(t, policy.Defaults[domain.PriorityMedium].ResponseMinutes, budget.ResponseMinutes)
}

func TestResolveBudgetUnknownEnums(t *testing.T) {
	policy := DefaultPolicy()

	var unknown *UnknownEnumValueError
	_, err := policy.ResolveBudget("GARDENING", domain.PriorityHigh)
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "work order type", unknown.Kind)

	_, err = policy.ResolveBudget(domain.TypeBreakdown, "WHENEVER")
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "priority", unknown.Kind)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	broken := DefaultPolicy()
	broken.WarningThresholds = []int{90, 50}
	require.Error(t, broken.Validate())

	broken = DefaultPolicy()
	broken.AtRiskPercent = 0
	require.Error(t, broken.Validate())

	broken = DefaultPolicy()
	broken.EscalationBands = []EscalationBand{
		{Level: domain.EscalationLevel1, AfterMinutes: 60},
		{Level: domain.EscalationLevel2, AfterMinutes: 30},
	}
	require.Error(t, broken.Validate())

	broken = DefaultPolicy()
	delete(broken.EscalationTargets, domain.EscalationLevel2)
	require.Error(t, broken.Validate())

	broken = DefaultPolicy()
	delete(broken.Defaults, domain.PriorityMedium)
	require.Error(t, broken.Validate())
}

func TestLoadSettingsDefaultsWhenNoFile(t *testing.T) {
	settings, err := LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, DefaultCalendarConfig(), settings.Calendar)
	require.Equal(t, []int{50, 75, 90}, settings.Policy.WarningThresholds)
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla.yaml")
	content := `
calendar:
  timezone: UTC
  working_days: [1, 2, 3, 4, 5, 6]
  day_start: "07:00"
  day_end: "19:00"
policy:
  defaults:
    EMERGENCY: {response_minutes: 10, resolution_minutes: 120}
    MEDIUM: {response_minutes: 180, resolution_minutes: 960, business_hours_only: true}
  warning_thresholds: [60, 85]
  at_risk_percent: 75
  escalation_bands:
    - {level: LEVEL_1, after_minutes: 30}
  escalation_targets:
    LEVEL_1: [supervisor]
  auto_escalation: {enabled: false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "07:00", settings.Calendar.DayStart)
	require.Equal(t, []int{60, 85}, settings.Policy.WarningThresholds)
	require.Equal(t, 10, settings.Policy.Defaults[domain.PriorityEmergency].ResponseMinutes)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
