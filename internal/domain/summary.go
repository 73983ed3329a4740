package domain

import (
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable means the record store could not be reached before any rule ran
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrRunInProgress means another invocation holds the run lock
	ErrRunInProgress = errors.New("notification run already in progress")
)

// TypeSummary accounts for every candidate a single rule considered
type TypeSummary struct {
	Type       TriggerType `json:"type"`
	Idle       bool        `json:"idle"`
	Candidates int         `json:"candidates"`
	Sent       int         `json:"sent"`
	Suppressed int         `json:"suppressed"`
	Failed     int         `json:"failed"`
	Errors     []string    `json:"errors,omitempty"`
}

// RunSummary is the single result of one run across all rules
type RunSummary struct {
	RunID      string                       `json:"run_id"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Types      map[TriggerType]*TypeSummary `json:"types"`
}

// NewRunSummary creates an empty summary for all built-in rules
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	s := &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Types:     make(map[TriggerType]*TypeSummary, len(TriggerTypes)),
	}
	for _, t := range TriggerTypes {
		s.Types[t] = &TypeSummary{Type: t}
	}
	return s
}

// SentCount returns the successful dispatches for t
func (s *RunSummary) SentCount(t TriggerType) int {
	if ts, ok := s.Types[t]; ok {
		return ts.Sent
	}
	return 0
}

// Errors flattens the per-type errors in rule order
func (s *RunSummary) Errors() []string {
	errs := []string{}
	for _, t := range TriggerTypes {
		if ts, ok := s.Types[t]; ok {
			errs = append(errs, ts.Errors...)
		}
	}
	return errs
}

// Result keys reported by the trigger endpoint and run events
const (
	ResultBirthdays        = "birthdays"
	ResultAnnualFees       = "annualFees"
	ResultPaymentReminders = "paymentReminders"
)

// Results maps each rule to its sent count under the public result keys
func (s *RunSummary) Results() map[string]int {
	return map[string]int{
		ResultBirthdays:        s.SentCount(TriggerBirthday),
		ResultAnnualFees:       s.SentCount(TriggerAnnualFeeDue),
		ResultPaymentReminders: s.SentCount(TriggerPaymentReminder),
	}
}
