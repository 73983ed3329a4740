package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

type memBounceStore struct {
	byDelivery map[string]*domain.NotificationHistory
	created    []*domain.NotificationHistory
	findErr    error
}

func (m *memBounceStore) FindByDeliveryID(_ context.Context, id string) (*domain.NotificationHistory, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byDelivery[id], nil
}

func (m *memBounceStore) Create(_ context.Context, entry *domain.NotificationHistory) error {
	m.created = append(m.created, entry)
	return nil
}

func postBounce(store BounceStore, payload string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/ses", NewBounceHandler(store, logger.NewNopLogger()).HandleSESWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleSESWebhook_RecordsBounce(t *testing.T) {
	customerID := primitive.NewObjectID()
	store := &memBounceStore{byDelivery: map[string]*domain.NotificationHistory{
		"ses-1": {
			RunID:            "run-1",
			CustomerID:       &customerID,
			NotificationType: domain.TriggerPaymentReminder,
			Subject:          "Pago pendiente",
			Status:           domain.NotificationStatusSent,
			DeliveryID:       "ses-1",
			SentAt:           time.Date(2026, 10, 1, 15, 0, 0, 0, time.UTC),
		},
	}}

	w := postBounce(store, `{"type":"bounce","email":"ana@example.com","message_id":"ses-1","bounce_type":"hard","reason":"mailbox does not exist","timestamp":"2026-10-15T16:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.created, 1)
	row := store.created[0]
	assert.Equal(t, domain.NotificationStatusBounced, row.Status)
	assert.Equal(t, domain.TriggerPaymentReminder, row.NotificationType)
	assert.Equal(t, customerID, *row.CustomerID)
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, "hard: mailbox does not exist", row.ErrorMessage)
	// the bounce keeps the attempt's time so a late bounce cannot extend the repeat window
	assert.True(t, time.Date(2026, 10, 1, 15, 0, 0, 0, time.UTC).Equal(row.SentAt))
	require.NotNil(t, row.BouncedAt)
	assert.True(t, time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC).Equal(*row.BouncedAt))
}

func TestHandleSESWebhook_Complaint(t *testing.T) {
	store := &memBounceStore{byDelivery: map[string]*domain.NotificationHistory{
		"ses-2": {NotificationType: domain.TriggerBirthday, Status: domain.NotificationStatusSent},
	}}

	w := postBounce(store, `{"type":"complaint","email":"ana@example.com","message_id":"ses-2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.created, 1)
	assert.Equal(t, "complaint", store.created[0].ErrorMessage)
	require.NotNil(t, store.created[0].BouncedAt)
	assert.False(t, store.created[0].BouncedAt.IsZero())
}

func TestHandleSESWebhook_UnknownMessage(t *testing.T) {
	store := &memBounceStore{}
	w := postBounce(store, `{"type":"bounce","email":"ana@example.com","message_id":"other"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, store.created)
}

func TestHandleSESWebhook_Errors(t *testing.T) {
	w := postBounce(&memBounceStore{}, `{"type":"bounce"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"VALIDATION_ERROR"`)

	w = postBounce(&memBounceStore{findErr: errors.New("boom")}, `{"email":"a@example.com","message_id":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
}
