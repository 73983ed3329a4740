package trigger

import (
	"strconv"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// PaymentReminderEvaluator matches customers who never paid or whose last
// payment is older than months_overdue months. Repeat cadence is enforced by
// the dedup guard, not here.
type PaymentReminderEvaluator struct {
	opts Options
}

func (e *PaymentReminderEvaluator) Type() domain.TriggerType { return domain.TriggerPaymentReminder }

func (e *PaymentReminderEvaluator) Evaluate(now time.Time, cfg *domain.NotificationConfig, customers []domain.Customer) ([]domain.Candidate, error) {
	params, err := paramsFor[domain.PaymentReminderParams](cfg, e.Type())
	if err != nil {
		return nil, err
	}

	today := e.opts.Calendar.Today(now)
	threshold := addMonths(today, -params.MonthsOverdue)

	var candidates []domain.Candidate
	for i := range customers {
		c := &customers[i]
		if !hasEmail(c) {
			continue
		}

		monthsOverdue := NeverPaidMonthsOverdue
		lastPayment := NotAvailable
		if c.LastPaymentDate != nil {
			last := storedDate(c.LastPaymentDate)
			if !last.Before(threshold) {
				continue
			}
			monthsOverdue = monthsBetween(last, today)
			lastPayment = e.opts.Formatter.Date(last)
		}

		candidates = append(candidates, domain.Candidate{
			Customer: *c,
			Type:     e.Type(),
			Bindings: map[string]string{
				VarCustomerName:    c.Name,
				VarMonthsOverdue:   strconv.Itoa(monthsOverdue),
				VarAmount:          e.opts.Formatter.Amount(float64(monthsOverdue) * params.UnitRate),
				VarLastPaymentDate: lastPayment,
				VarAccountNumber:   orNotAvailable(c.AccountNumber),
				VarCompanyName:     e.opts.CompanyName,
			},
		})
	}
	return candidates, nil
}
