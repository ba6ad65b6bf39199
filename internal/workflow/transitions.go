package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// Action enumerates operations callers may request on a work order.
type Action string

const (
	ActionSubmit       Action = "SUBMIT"
	ActionApprove      Action = "APPROVE"
	ActionReject       Action = "REJECT"
	ActionAssign       Action = "ASSIGN"
	ActionReassign     Action = "REASSIGN"
	ActionStart        Action = "START"
	ActionHold         Action = "HOLD"
	ActionResume       Action = "RESUME"
	ActionRequestParts Action = "REQUEST_PARTS"
	ActionReceiveParts Action = "RECEIVE_PARTS"
	ActionComplete     Action = "COMPLETE"
	ActionClose        Action = "CLOSE"
	ActionReopen       Action = "REOPEN"
	ActionCancel       Action = "CANCEL"
	ActionComment      Action = "COMMENT"
	ActionAttach       Action = "ATTACH"
)

var knownActions = map[Action]struct{}{
	ActionSubmit: {}, ActionApprove: {}, ActionReject: {}, ActionAssign: {},
	ActionReassign: {}, ActionStart: {}, ActionHold: {}, ActionResume: {},
	ActionRequestParts: {}, ActionReceiveParts: {}, ActionComplete: {},
	ActionClose: {}, ActionReopen: {}, ActionCancel: {}, ActionComment: {},
	ActionAttach: {},
}

// ParseAction converts a wire string into an Action, case-insensitively.
func ParseAction(s string) (Action, bool) {
	action := Action(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := knownActions[action]
	return action, ok
}

// InvalidTransitionError reports an action not permitted from the current
// status, listing what would have been allowed. Never retried; rendered as a
// conflict at the API boundary.
type InvalidTransitionError struct {
	Action  Action
	Status  domain.WorkOrderStatus
	Allowed []Action
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, a := range e.Allowed {
		allowed = append(allowed, string(a))
	}
	return fmt.Sprintf("action %s not allowed from status %s (allowed: %s)",
		e.Action, e.Status, strings.Join(allowed, ", "))
}

// UnknownStatusError reports a status missing from the table. Caller-bug class.
type UnknownStatusError struct {
	Status domain.WorkOrderStatus
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown work order status %q", e.Status)
}

// statusRule holds the per-status slice of the table. Transitions maps only
// status-changing actions; allowed actions without an entry keep the current
// status (comments, attachments).
type statusRule struct {
	Allowed     map[Action]struct{}
	Transitions map[Action]domain.WorkOrderStatus
	Terminal    bool
}

// Table is the validated work-order transition table. Immutable after New.
type Table struct {
	rules map[domain.WorkOrderStatus]statusRule
}

func rule(terminal bool, transitions map[Action]domain.WorkOrderStatus, extra ...Action) statusRule {
	allowed := make(map[Action]struct{}, len(transitions)+len(extra))
	for action := range transitions {
		allowed[action] = struct{}{}
	}
	for _, action := range extra {
		allowed[action] = struct{}{}
	}
	return statusRule{Allowed: allowed, Transitions: transitions, Terminal: terminal}
}

// New builds the default transition table and validates it.
func New() (*Table, error) {
	t := &Table{rules: map[domain.WorkOrderStatus]statusRule{
		domain.StatusDraft: rule(false, map[Action]domain.WorkOrderStatus{
			ActionSubmit: domain.StatusSubmitted,
			ActionCancel: domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusSubmitted: rule(false, map[Action]domain.WorkOrderStatus{
			ActionApprove: domain.StatusApproved,
			ActionReject:  domain.StatusDraft,
			ActionCancel:  domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusApproved: rule(false, map[Action]domain.WorkOrderStatus{
			ActionAssign: domain.StatusAssigned,
			ActionCancel: domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusAssigned: rule(false, map[Action]domain.WorkOrderStatus{
			ActionStart:    domain.StatusInProgress,
			ActionReassign: domain.StatusAssigned,
			ActionCancel:   domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusInProgress: rule(false, map[Action]domain.WorkOrderStatus{
			ActionHold:         domain.StatusOnHold,
			ActionRequestParts: domain.StatusPendingParts,
			ActionComplete:     domain.StatusCompleted,
			ActionReassign:     domain.StatusInProgress,
			ActionCancel:       domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusOnHold: rule(false, map[Action]domain.WorkOrderStatus{
			ActionResume: domain.StatusInProgress,
			ActionCancel: domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusPendingParts: rule(false, map[Action]domain.WorkOrderStatus{
			ActionReceiveParts: domain.StatusInProgress,
			ActionCancel:       domain.StatusCancelled,
		}, ActionComment, ActionAttach),
		domain.StatusCompleted: rule(false, map[Action]domain.WorkOrderStatus{
			ActionClose:  domain.StatusClosed,
			ActionReopen: domain.StatusInProgress,
		}, ActionComment, ActionAttach),
		domain.StatusClosed:    rule(true, nil, ActionComment, ActionAttach),
		domain.StatusCancelled: rule(true, nil, ActionComment, ActionAttach),
	}}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew builds the default table and panics on a broken definition. Intended
// for process startup, where a malformed table is unrecoverable.
func MustNew() *Table {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// validate checks that every non-terminal status offers at least one
// status-changing action and that every transition target is declared.
func (t *Table) validate() error {
	for status, rule := range t.rules {
		if !rule.Terminal && len(rule.Transitions) == 0 {
			return fmt.Errorf("status %s is non-terminal but has no transitions", status)
		}
		if rule.Terminal && len(rule.Transitions) > 0 {
			return fmt.Errorf("status %s is terminal but declares transitions", status)
		}
		for action, target := range rule.Transitions {
			if _, ok := t.rules[target]; !ok {
				return fmt.Errorf("transition %s+%s targets undeclared status %s", status, action, target)
			}
		}
	}
	return nil
}

// CanPerform reports whether action is legal from status.
func (t *Table) CanPerform(action Action, status domain.WorkOrderStatus) bool {
	rule, ok := t.rules[status]
	if !ok {
		return false
	}
	_, allowed := rule.Allowed[action]
	return allowed
}

// NextStatus returns the status after performing action. Allowed actions with
// no mapped target (comment, attach) return the current status unchanged.
func (t *Table) NextStatus(action Action, status domain.WorkOrderStatus) (domain.WorkOrderStatus, error) {
	rule, ok := t.rules[status]
	if !ok {
		return status, &UnknownStatusError{Status: status}
	}
	if _, allowed := rule.Allowed[action]; !allowed {
		return status, t.invalidTransition(action, status)
	}
	if next, changes := rule.Transitions[action]; changes {
		return next, nil
	}
	return status, nil
}

// Validate returns nil when action is legal from status, otherwise an
// InvalidTransitionError carrying the allowed actions.
func (t *Table) Validate(action Action, status domain.WorkOrderStatus) error {
	if _, ok := t.rules[status]; !ok {
		return &UnknownStatusError{Status: status}
	}
	if !t.CanPerform(action, status) {
		return t.invalidTransition(action, status)
	}
	return nil
}

// AllowedActions lists legal actions from status in stable order.
func (t *Table) AllowedActions(status domain.WorkOrderStatus) []Action {
	rule, ok := t.rules[status]
	if !ok {
		return nil
	}
	actions := make([]Action, 0, len(rule.Allowed))
	for action := range rule.Allowed {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// IsTerminal reports whether status has no outgoing status-changing actions.
func (t *Table) IsTerminal(status domain.WorkOrderStatus) bool {
	rule, ok := t.rules[status]
	return ok && rule.Terminal
}

// Statuses lists every declared status in stable order.
func (t *Table) Statuses() []domain.WorkOrderStatus {
	statuses := make([]domain.WorkOrderStatus, 0, len(t.rules))
	for status := range t.rules {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	return statuses
}

func (t *Table) invalidTransition(action Action, status domain.WorkOrderStatus) error {
	return &InvalidTransitionError{
		Action:  action,
		Status:  status,
		Allowed: t.AllowedActions(status),
	}
}
