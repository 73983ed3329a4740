package trigger

import (
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// AnnualFeeEvaluator matches customers whose annual fee falls due exactly
// days_before days from today, so each due cycle matches on a single day.
type AnnualFeeEvaluator struct {
	opts Options
}

func (e *AnnualFeeEvaluator) Type() domain.TriggerType { return domain.TriggerAnnualFeeDue }

func (e *AnnualFeeEvaluator) Evaluate(now time.Time, cfg *domain.NotificationConfig, customers []domain.Customer) ([]domain.Candidate, error) {
	params, err := paramsFor[domain.AnnualFeeParams](cfg, e.Type())
	if err != nil {
		return nil, err
	}

	target := e.opts.Calendar.Today(now).AddDays(params.DaysBefore)
	amount := e.opts.Formatter.Amount(params.Amount)

	var candidates []domain.Candidate
	for i := range customers {
		c := &customers[i]
		if !hasEmail(c) || c.AnnualFeeDueDate == nil {
			continue
		}
		due := storedDate(c.AnnualFeeDueDate)
		if due != target {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Customer: *c,
			Type:     e.Type(),
			Bindings: map[string]string{
				VarCustomerName:  c.Name,
				VarAccountNumber: orNotAvailable(c.AccountNumber),
				VarDueDate:       e.opts.Formatter.Date(due),
				VarAmount:        amount,
				VarCompanyName:   e.opts.CompanyName,
			},
		})
	}
	return candidates, nil
}
