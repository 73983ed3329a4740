// Package trigger decides which customers are due each built-in
// notification "today" in the business timezone.
package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Binding keys available to templates
const (
	VarCustomerName    = "customer_name"
	VarCompanyName     = "company_name"
	VarAccountNumber   = "account_number"
	VarDueDate         = "due_date"
	VarAmount          = "amount"
	VarMonthsOverdue   = "months_overdue"
	VarLastPaymentDate = "last_payment_date"
)

// NotAvailable replaces optional values a customer record lacks
const NotAvailable = "N/A"

// NeverPaidMonthsOverdue is reported for customers with no recorded payment
const NeverPaidMonthsOverdue = 3

// Evaluator produces the candidates one rule considers due at instant now.
// The caller handles disabled configs and missing templates.
type Evaluator interface {
	Type() domain.TriggerType
	Evaluate(now time.Time, cfg *domain.NotificationConfig, customers []domain.Customer) ([]domain.Candidate, error)
}

// Options are shared by all evaluators
type Options struct {
	Calendar    Calendar
	Formatter   Formatter
	CompanyName string
}

// NewEvaluators returns one evaluator per built-in rule, in summary order
func NewEvaluators(opts Options) []Evaluator {
	return []Evaluator{
		&BirthdayEvaluator{opts: opts},
		&AnnualFeeEvaluator{opts: opts},
		&PaymentReminderEvaluator{opts: opts},
	}
}

func hasEmail(c *domain.Customer) bool {
	return strings.TrimSpace(c.Email) != ""
}

func orNotAvailable(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return v
}

func paramsFor[P domain.TriggerParams](cfg *domain.NotificationConfig, t domain.TriggerType) (P, error) {
	var zero P
	if cfg == nil {
		return zero, fmt.Errorf("%s: missing configuration", t)
	}
	if cfg.Params == nil {
		return zero, fmt.Errorf("%s: configuration params not decoded", t)
	}
	p, ok := cfg.Params.(P)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected params type %T", t, cfg.Params)
	}
	return p, nil
}

// Variables lists the binding keys the rule t supplies to its templates
func Variables(t domain.TriggerType) []string {
	switch t {
	case domain.TriggerBirthday:
		return []string{VarCompanyName, VarCustomerName}
	case domain.TriggerAnnualFeeDue:
		return []string{VarAccountNumber, VarAmount, VarCompanyName, VarCustomerName, VarDueDate}
	case domain.TriggerPaymentReminder:
		return []string{VarAccountNumber, VarAmount, VarCompanyName, VarCustomerName, VarLastPaymentDate, VarMonthsOverdue}
	}
	return nil
}
