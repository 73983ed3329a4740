package trigger

import (
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// BirthdayEvaluator matches customers whose birth month/day is today
type BirthdayEvaluator struct {
	opts Options
}

func (e *BirthdayEvaluator) Type() domain.TriggerType { return domain.TriggerBirthday }

func (e *BirthdayEvaluator) Evaluate(now time.Time, cfg *domain.NotificationConfig, customers []domain.Customer) ([]domain.Candidate, error) {
	if _, err := paramsFor[domain.BirthdayParams](cfg, e.Type()); err != nil {
		return nil, err
	}

	today := e.opts.Calendar.Today(now)

	var candidates []domain.Candidate
	for i := range customers {
		c := &customers[i]
		if !hasEmail(c) || c.BirthDate == nil {
			continue
		}
		birth := storedDate(c.BirthDate)
		if birth.Month != today.Month || birth.Day != today.Day {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Customer: *c,
			Type:     e.Type(),
			Bindings: map[string]string{
				VarCustomerName: c.Name,
				VarCompanyName:  e.opts.CompanyName,
			},
		})
	}
	return candidates, nil
}
