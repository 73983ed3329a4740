package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
)

var testParamDefaults = domain.ParamDefaults{AnnualFeeAmount: 1500, UnitRate: 500}

func TestCustomerRepository_FindWithEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes customers", func(mt *mtest.T) {
		repo := NewCustomerRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + customersCollection
		birth := time.Date(1990, 10, 14, 0, 0, 0, 0, time.UTC)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "name", Value: "Ana"},
				{Key: "email", Value: "ana@example.com"},
				{Key: "birth_date", Value: primitive.NewDateTimeFromTime(birth)},
				{Key: "account_number", Value: "ACC-1"},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "name", Value: "Beto"},
				{Key: "email", Value: "beto@example.com"},
			},
		))

		customers, err := repo.FindWithEmail(context.Background())
		require.NoError(mt, err)
		require.Len(mt, customers, 2)

		require.NotNil(mt, customers[0].BirthDate)
		assert.True(mt, birth.Equal(*customers[0].BirthDate))
		assert.Equal(mt, "ACC-1", customers[0].AccountNumber)
		assert.Nil(mt, customers[1].BirthDate)
		assert.Nil(mt, customers[1].LastPaymentDate)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := NewCustomerRepository(mongodb.NewFromDatabase(mt.DB))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		_, err := repo.FindWithEmail(context.Background())
		assert.Error(mt, err)
	})
}

func TestConfigRepository_FindByType(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes params", func(mt *mtest.T) {
		repo := NewConfigRepository(mongodb.NewFromDatabase(mt.DB), testParamDefaults)
		ns := mt.DB.Name() + "." + configsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "notification_type", Value: "annual_fee_due"},
			{Key: "enabled", Value: true},
			{Key: "trigger_condition", Value: bson.D{{Key: "days_before", Value: int32(15)}}},
			{Key: "send_time", Value: "09:00"},
		}))

		cfg, err := repo.FindByType(context.Background(), domain.TriggerAnnualFeeDue)
		require.NoError(mt, err)
		require.NotNil(mt, cfg)
		assert.True(mt, cfg.Enabled)
		assert.Equal(mt, "09:00", cfg.SendTime)
		assert.Equal(mt, domain.AnnualFeeParams{DaysBefore: 15, Amount: 1500}, cfg.Params)
	})

	mt.Run("missing row is not an error", func(mt *mtest.T) {
		repo := NewConfigRepository(mongodb.NewFromDatabase(mt.DB), testParamDefaults)
		ns := mt.DB.Name() + "." + configsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		cfg, err := repo.FindByType(context.Background(), domain.TriggerBirthday)
		require.NoError(mt, err)
		assert.Nil(mt, cfg)
	})

	mt.Run("malformed trigger condition", func(mt *mtest.T) {
		repo := NewConfigRepository(mongodb.NewFromDatabase(mt.DB), testParamDefaults)
		ns := mt.DB.Name() + "." + configsCollection

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "notification_type", Value: "payment_reminder"},
			{Key: "enabled", Value: true},
			{Key: "trigger_condition", Value: bson.D{{Key: "repeat_every_days", Value: "often"}}},
		}))

		_, err := repo.FindByType(context.Background(), domain.TriggerPaymentReminder)
		assert.Error(mt, err)
	})
}

func TestHistoryRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	customerID := primitive.NewObjectID()

	mt.Run("create appends row", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		entry := &domain.NotificationHistory{
			RunID:            "run-1",
			CustomerID:       &customerID,
			NotificationType: domain.TriggerBirthday,
			RecipientEmail:   "ana@example.com",
			Subject:          "Feliz cumpleaños",
			Status:           domain.NotificationStatusSent,
		}
		require.NoError(mt, repo.Create(context.Background(), entry))
		assert.False(mt, entry.ID.IsZero())
		assert.False(mt, entry.SentAt.IsZero())
	})

	mt.Run("attempt found", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + historyCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}}))

		found, err := repo.HasAttemptSince(context.Background(), customerID.Hex(), domain.TriggerPaymentReminder, time.Now().Add(-15*24*time.Hour))
		require.NoError(mt, err)
		assert.True(mt, found)
	})

	mt.Run("no attempt", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + historyCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		found, err := repo.HasAttemptSince(context.Background(), customerID.Hex(), domain.TriggerPaymentReminder, time.Now())
		require.NoError(mt, err)
		assert.False(mt, found)
	})

	mt.Run("invalid customer id", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		_, err := repo.HasAttemptSince(context.Background(), "not-hex", domain.TriggerBirthday, time.Now())
		assert.Error(mt, err)
	})

	mt.Run("find page", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + historyCollection

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "notification_type", Value: "birthday"},
					{Key: "status", Value: "failed"},
					{Key: "error_message", Value: "mailbox unavailable"},
				},
			),
		)

		entries, total, err := repo.FindPage(context.Background(), HistoryFilter{Status: domain.NotificationStatusFailed}, 1, 1)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), total)
		require.Len(mt, entries, 1)
		assert.Equal(mt, "mailbox unavailable", entries[0].ErrorMessage)
	})

	mt.Run("find by delivery id", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + historyCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "customer_id", Value: customerID},
			{Key: "notification_type", Value: "annual_fee_due"},
			{Key: "delivery_id", Value: "ses-1"},
			{Key: "status", Value: "sent"},
		}))

		entry, err := repo.FindByDeliveryID(context.Background(), "ses-1")
		require.NoError(mt, err)
		require.NotNil(mt, entry)
		assert.Equal(mt, domain.TriggerAnnualFeeDue, entry.NotificationType)
		assert.Equal(mt, customerID, *entry.CustomerID)
	})

	mt.Run("unknown delivery id", func(mt *mtest.T) {
		repo := NewHistoryRepository(mongodb.NewFromDatabase(mt.DB))
		ns := mt.DB.Name() + "." + historyCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		entry, err := repo.FindByDeliveryID(context.Background(), "missing")
		require.NoError(mt, err)
		assert.Nil(mt, entry)
	})
}
