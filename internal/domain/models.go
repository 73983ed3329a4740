package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TriggerType identifies one of the built-in notification rules
type TriggerType string

const (
	TriggerBirthday        TriggerType = "birthday"
	TriggerAnnualFeeDue    TriggerType = "annual_fee_due"
	TriggerPaymentReminder TriggerType = "payment_reminder"

	// TemplateTypeCustom marks templates authored for manual sends
	TemplateTypeCustom TriggerType = "custom"
)

// TriggerTypes lists the built-in rules in summary order
var TriggerTypes = []TriggerType{
	TriggerBirthday,
	TriggerAnnualFeeDue,
	TriggerPaymentReminder,
}

// Valid reports whether t is one of the built-in rules
func (t TriggerType) Valid() bool {
	for _, known := range TriggerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationStatus represents the outcome of a dispatch attempt
type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusBounced NotificationStatus = "bounced"
)

// Customer is the CRM record the evaluators scan. Date fields hold
// calendar dates stored as UTC midnight.
type Customer struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name             string             `json:"name" bson:"name"`
	Email            string             `json:"email,omitempty" bson:"email,omitempty"`
	BirthDate        *time.Time         `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	AnnualFeeDueDate *time.Time         `json:"annual_fee_due_date,omitempty" bson:"annual_fee_due_date,omitempty"`
	LastPaymentDate  *time.Time         `json:"last_payment_date,omitempty" bson:"last_payment_date,omitempty"`
	AccountNumber    string             `json:"account_number,omitempty" bson:"account_number,omitempty"`
}

// NotificationTemplate represents an operator-authored message template
type NotificationTemplate struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type      TriggerType        `json:"type" bson:"type"`
	Name      string             `json:"name" bson:"name"`
	Subject   string             `json:"subject" bson:"subject"`
	Body      string             `json:"body" bson:"body"`
	Variables []string           `json:"variables,omitempty" bson:"variables,omitempty"`
	IsActive  bool               `json:"is_active" bson:"is_active"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// NotificationConfig is the per-rule configuration row. TriggerCondition is
// decoded into Params when the row is loaded.
type NotificationConfig struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	NotificationType TriggerType        `json:"notification_type" bson:"notification_type"`
	Enabled          bool               `json:"enabled" bson:"enabled"`
	TriggerCondition bson.Raw           `json:"-" bson:"trigger_condition,omitempty"`
	SendTime         string             `json:"send_time,omitempty" bson:"send_time,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at" bson:"updated_at"`

	Params TriggerParams `json:"params,omitempty" bson:"-"`
}

// NotificationHistory is one append-only dispatch attempt
type NotificationHistory struct {
	ID               primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RunID            string              `json:"run_id" bson:"run_id"`
	CustomerID       *primitive.ObjectID `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	NotificationType TriggerType         `json:"notification_type" bson:"notification_type"`
	RecipientEmail   string              `json:"recipient_email" bson:"recipient_email"`
	Subject          string              `json:"subject" bson:"subject"`
	Status           NotificationStatus  `json:"status" bson:"status"`
	DeliveryID       string              `json:"delivery_id,omitempty" bson:"delivery_id,omitempty"`
	ErrorMessage     string              `json:"error_message,omitempty" bson:"error_message,omitempty"`
	SentAt           time.Time           `json:"sent_at" bson:"sent_at"`
	// BouncedAt is the provider's event time on bounced rows. SentAt on those
	// rows stays the original attempt time so the dedup window does not move.
	BouncedAt *time.Time `json:"bounced_at,omitempty" bson:"bounced_at,omitempty"`
}

// Candidate is a customer found eligible for a notification in the current run
type Candidate struct {
	Customer Customer
	Type     TriggerType
	Bindings map[string]string
}

// OutboundMessage is what the transport delivers
type OutboundMessage struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// DeliveryReceipt is returned by a successful dispatch
type DeliveryReceipt struct {
	DeliveryID string
	SentAt     time.Time
}
