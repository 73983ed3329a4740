package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultDaysBefore      = 30
	DefaultMonthsOverdue   = 2
	DefaultRepeatEveryDays = 15
)

// TriggerParams is the decoded trigger_condition of a config row. Exactly one
// concrete type exists per trigger type.
type TriggerParams interface {
	TriggerType() TriggerType
}

// BirthdayParams carries no tunables
type BirthdayParams struct{}

// AnnualFeeParams tunes the annual fee reminder
type AnnualFeeParams struct {
	DaysBefore int `json:"days_before"`
	// Amount is a fixed configured value, not derived from pricing
	Amount float64 `json:"amount"`
}

// PaymentReminderParams tunes the overdue payment reminder
type PaymentReminderParams struct {
	MonthsOverdue   int     `json:"months_overdue"`
	RepeatEveryDays int     `json:"repeat_every_days"`
	UnitRate        float64 `json:"unit_rate"`
}

func (BirthdayParams) TriggerType() TriggerType        { return TriggerBirthday }
func (AnnualFeeParams) TriggerType() TriggerType       { return TriggerAnnualFeeDue }
func (PaymentReminderParams) TriggerType() TriggerType { return TriggerPaymentReminder }

// ParamDefaults supplies values for amounts the config row leaves out
type ParamDefaults struct {
	AnnualFeeAmount float64
	UnitRate        float64
}

// rawParams mirrors every key any trigger_condition may hold; pointers
// distinguish "absent" from an explicit zero.
type rawParams struct {
	DaysBefore      *int     `bson:"days_before"`
	Amount          *float64 `bson:"amount"`
	MonthsOverdue   *int     `bson:"months_overdue"`
	RepeatEveryDays *int     `bson:"repeat_every_days"`
	UnitRate        *float64 `bson:"unit_rate"`
}

// DecodeTriggerParams turns the stored trigger_condition document into the
// concrete params for t. An empty document yields the defaults.
func DecodeTriggerParams(t TriggerType, raw bson.Raw, defaults ParamDefaults) (TriggerParams, error) {
	var rp rawParams
	if len(raw) > 0 {
		if err := bson.Unmarshal(raw, &rp); err != nil {
			return nil, fmt.Errorf("malformed trigger_condition for %s: %w", t, err)
		}
	}

	switch t {
	case TriggerBirthday:
		return BirthdayParams{}, nil

	case TriggerAnnualFeeDue:
		p := AnnualFeeParams{DaysBefore: DefaultDaysBefore, Amount: defaults.AnnualFeeAmount}
		if rp.DaysBefore != nil {
			if *rp.DaysBefore < 0 {
				return nil, fmt.Errorf("days_before must not be negative, got %d", *rp.DaysBefore)
			}
			p.DaysBefore = *rp.DaysBefore
		}
		if rp.Amount != nil {
			p.Amount = *rp.Amount
		}
		return p, nil

	case TriggerPaymentReminder:
		p := PaymentReminderParams{
			MonthsOverdue:   DefaultMonthsOverdue,
			RepeatEveryDays: DefaultRepeatEveryDays,
			UnitRate:        defaults.UnitRate,
		}
		if rp.MonthsOverdue != nil {
			if *rp.MonthsOverdue < 1 {
				return nil, fmt.Errorf("months_overdue must be at least 1, got %d", *rp.MonthsOverdue)
			}
			p.MonthsOverdue = *rp.MonthsOverdue
		}
		if rp.RepeatEveryDays != nil {
			if *rp.RepeatEveryDays < 1 {
				return nil, fmt.Errorf("repeat_every_days must be at least 1, got %d", *rp.RepeatEveryDays)
			}
			p.RepeatEveryDays = *rp.RepeatEveryDays
		}
		if rp.UnitRate != nil {
			p.UnitRate = *rp.UnitRate
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown trigger type %q", t)
	}
}
