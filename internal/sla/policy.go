package sla

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// UnknownEnumValueError reports a priority or type missing from the lookup
// tables. Caller-bug class; never retried.
type UnknownEnumValueError struct {
	Kind  string
	Value string
}

func (e *UnknownEnumValueError) Error() string {
	return fmt.Sprintf("unknown %s value %q", e.Kind, e.Value)
}

// Budget is a fully resolved pair of SLA time budgets for one work order.
type Budget struct {
	ResponseMinutes   int
	ResolutionMinutes int
	BusinessHoursOnly bool
	GraceMinutes      int
}

// PriorityBudget is the priority-level default budget row.
type PriorityBudget struct {
	ResponseMinutes   int  `yaml:"response_minutes"`
	ResolutionMinutes int  `yaml:"resolution_minutes"`
	BusinessHoursOnly bool `yaml:"business_hours_only"`
	GraceMinutes      int  `yaml:"grace_minutes"`
}

// BudgetOverride refines a priority default for a work-order type. An empty
// Priority matches every priority, which is how types like SAFETY force
// calendar-time tracking without a code change. Zero/nil fields inherit from
// the priority default.
type BudgetOverride struct {
	Type              domain.WorkOrderType     `yaml:"type"`
	Priority          domain.WorkOrderPriority `yaml:"priority"`
	ResponseMinutes   int                      `yaml:"response_minutes"`
	ResolutionMinutes int                      `yaml:"resolution_minutes"`
	BusinessHoursOnly *bool                    `yaml:"business_hours_only"`
	GraceMinutes      *int                     `yaml:"grace_minutes"`
}

// BreachStep is one rung of a breach action ladder: fire action once the
// breach is at least DelayMinutes old.
type BreachStep struct {
	Action       string `yaml:"action"`
	DelayMinutes int    `yaml:"delay_minutes"`
}

// EscalationBand maps a breach duration to a severity level.
type EscalationBand struct {
	Level        domain.EscalationLevel `yaml:"level"`
	AfterMinutes int                    `yaml:"after_minutes"`
}

// AutoEscalation controls one-shot priority promotion on long breaches.
type AutoEscalation struct {
	Enabled            bool                     `yaml:"enabled"`
	AfterBreachMinutes int                      `yaml:"after_breach_minutes"`
	MaxPriority        domain.WorkOrderPriority `yaml:"max_priority"`
}

// Policy bundles every SLA rule table. Loaded once at startup and passed
// explicitly; core functions never consult ambient state.
type Policy struct {
	Defaults               map[domain.WorkOrderPriority]PriorityBudget `yaml:"defaults"`
	Overrides              []BudgetOverride                            `yaml:"overrides"`
	WarningThresholds      []int                                       `yaml:"warning_thresholds"`
	AtRiskPercent          int                                         `yaml:"at_risk_percent"`
	ResponseBreachLadder   []BreachStep                                `yaml:"response_breach_ladder"`
	ResolutionBreachLadder []BreachStep                                `yaml:"resolution_breach_ladder"`
	EscalationBands        []EscalationBand                            `yaml:"escalation_bands"`
	EscalationTargets      map[domain.EscalationLevel][]string         `yaml:"escalation_targets"`
	AutoEscalation         AutoEscalation                              `yaml:"auto_escalation"`
}

// DefaultPolicy returns the built-in rule tables used when no settings file
// is supplied.
func DefaultPolicy() Policy {
	return Policy{
		Defaults: map[domain.WorkOrderPriority]PriorityBudget{
			domain.PriorityEmergency: {ResponseMinutes: 15, ResolutionMinutes: 240, BusinessHoursOnly: false},
			domain.PriorityHigh:      {ResponseMinutes: 60, ResolutionMinutes: 480, BusinessHoursOnly: true},
			domain.PriorityMedium:    {ResponseMinutes: 240, ResolutionMinutes: 1440, BusinessHoursOnly: true},
			domain.PriorityLow:       {ResponseMinutes: 480, ResolutionMinutes: 2880, BusinessHoursOnly: true},
		},
		Overrides: []BudgetOverride{
			{Type: domain.TypeSafety, BusinessHoursOnly: boolPtr(false)},
		},
		WarningThresholds: []int{50, 75, 90},
		AtRiskPercent:     80,
		ResponseBreachLadder: []BreachStep{
			{Action: "NOTIFY_ASSIGNEE", DelayMinutes: 0},
			{Action: "NOTIFY_SUPERVISOR", DelayMinutes: 30},
		},
		ResolutionBreachLadder: []BreachStep{
			{Action: "NOTIFY_ASSIGNEE", DelayMinutes: 0},
			{Action: "NOTIFY_SUPERVISOR", DelayMinutes: 60},
			{Action: "NOTIFY_MANAGER", DelayMinutes: 240},
		},
		EscalationBands: []EscalationBand{
			{Level: domain.EscalationLevel1, AfterMinutes: 15},
			{Level: domain.EscalationLevel2, AfterMinutes: 60},
			{Level: domain.EscalationLevel3, AfterMinutes: 240},
		},
		EscalationTargets: map[domain.EscalationLevel][]string{
			domain.EscalationLevel1: {"supervisor"},
			domain.EscalationLevel2: {"maintenance_manager"},
			domain.EscalationLevel3: {"facility_director"},
		},
		AutoEscalation: AutoEscalation{
			Enabled:            true,
			AfterBreachMinutes: 120,
			MaxPriority:        domain.PriorityEmergency,
		},
	}
}

// Validate checks the rule tables for internal consistency.
func (p Policy) Validate() error {
	if len(p.Defaults) == 0 {
		return fmt.Errorf("policy requires priority defaults")
	}
	if _, ok := p.Defaults[domain.PriorityMedium]; !ok {
		return fmt.Errorf("policy requires a MEDIUM default as the global fallback")
	}
	for priority := range p.Defaults {
		if priority.Rank() < 0 {
			return &UnknownEnumValueError{Kind: "priority", Value: string(priority)}
		}
	}
	if p.AtRiskPercent <= 0 || p.AtRiskPercent > 100 {
		return fmt.Errorf("at_risk_percent %d out of range", p.AtRiskPercent)
	}
	if !sort.IntsAreSorted(p.WarningThresholds) {
		return fmt.Errorf("warning_thresholds must be ascending")
	}
	for _, pct := range p.WarningThresholds {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("warning threshold %d out of range", pct)
		}
	}
	prev := -1
	for _, band := range p.EscalationBands {
		if band.AfterMinutes <= prev {
			return fmt.Errorf("escalation bands must have strictly ascending after_minutes")
		}
		prev = band.AfterMinutes
		if _, ok := p.EscalationTargets[band.Level]; !ok {
			return fmt.Errorf("escalation level %s has no targets", band.Level)
		}
	}
	if p.AutoEscalation.Enabled && p.AutoEscalation.MaxPriority.Rank() < 0 {
		return &UnknownEnumValueError{Kind: "priority", Value: string(p.AutoEscalation.MaxPriority)}
	}
	return nil
}

// ResolveBudget resolves the SLA budgets for a type/priority pair. Precedence:
// exact type+priority override, then type override matching any priority, on
// top of the priority default, falling back to the MEDIUM default.
func (p Policy) ResolveBudget(woType domain.WorkOrderType, priority domain.WorkOrderPriority) (Budget, error) {
	if !knownType(woType) {
		return Budget{}, &UnknownEnumValueError{Kind: "work order type", Value: string(woType)}
	}
	if priority.Rank() < 0 {
		return Budget{}, &UnknownEnumValueError{Kind: "priority", Value: string(priority)}
	}

	base, ok := p.Defaults[priority]
	if !ok {
		base = p.Defaults[domain.PriorityMedium]
	}
	budget := Budget{
		ResponseMinutes:   base.ResponseMinutes,
		ResolutionMinutes: base.ResolutionMinutes,
		BusinessHoursOnly: base.BusinessHoursOnly,
		GraceMinutes:      base.GraceMinutes,
	}

	if override, ok := p.findOverride(woType, ""); ok {
		applyOverride(&budget, override)
	}
	if override, ok := p.findOverride(woType, priority); ok {
		applyOverride(&budget, override)
	}
	return budget, nil
}

func (p Policy) findOverride(woType domain.WorkOrderType, priority domain.WorkOrderPriority) (BudgetOverride, bool) {
	for _, override := range p.Overrides {
		if override.Type == woType && override.Priority == priority {
			return override, true
		}
	}
	return BudgetOverride{}, false
}

func applyOverride(budget *Budget, override BudgetOverride) {
	if override.ResponseMinutes > 0 {
		budget.ResponseMinutes = override.ResponseMinutes
	}
	if override.ResolutionMinutes > 0 {
		budget.ResolutionMinutes = override.ResolutionMinutes
	}
	if override.BusinessHoursOnly != nil {
		budget.BusinessHoursOnly = *override.BusinessHoursOnly
	}
	if override.GraceMinutes != nil {
		budget.GraceMinutes = *override.GraceMinutes
	}
}

func knownType(t domain.WorkOrderType) bool {
	switch t {
	case domain.TypeBreakdown, domain.TypePreventive, domain.TypeInspection, domain.TypeProject, domain.TypeSafety:
		return true
	default:
		return false
	}
}

// Settings is the on-disk shape of the SLA configuration file.
type Settings struct {
	Calendar CalendarConfig `yaml:"calendar"`
	Policy   Policy         `yaml:"policy"`
}

// LoadSettings reads calendar and policy tables from a YAML file, falling
// back to the built-in defaults when path is empty. The result is validated.
func LoadSettings(path string) (Settings, error) {
	settings := Settings{
		Calendar: DefaultCalendarConfig(),
		Policy:   DefaultPolicy(),
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read sla settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return Settings{}, fmt.Errorf("parse sla settings: %w", err)
		}
	}
	if err := settings.Policy.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func boolPtr(v bool) *bool {
	return &v
}
