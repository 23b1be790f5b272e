package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/booking"
	"github.com/sathi-care/booking-service/internal/localtime"
	"github.com/sathi-care/booking-service/internal/notify"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func newTestServer(t *testing.T) (http.Handler, *booking.MemoryRepository) {
	t.Helper()

	zone, err := localtime.New("+05:45")
	require.NoError(t, err)

	repo := booking.NewMemoryRepository()
	engine := booking.NewEngine(repo, &notify.Recorder{}, zone, booking.EngineConfig{
		HoldTTL:    5 * time.Minute,
		ListBuffer: 5 * time.Minute,
	}, zap.NewNop())

	handler := NewRouter(RouterConfig{
		Engine:    engine,
		JWTSecret: testSecret,
		Logger:    zap.NewNop(),
		Env:       "test",
		Version:   "test",
	})
	return handler, repo
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createTestSlots(t *testing.T, handler http.Handler, providerToken string, starts ...time.Time) []SlotResponse {
	t.Helper()

	specs := make([]SlotSpecRequest, 0, len(starts))
	for _, start := range starts {
		specs = append(specs, SlotSpecRequest{
			StartAt:  start.Format(time.RFC3339),
			EndAt:    start.Add(50 * time.Minute).Format(time.RFC3339),
			Fee:      500,
			Currency: "NPR",
		})
	}

	rec := doJSON(t, handler, http.MethodPost, "/slots", providerToken, CreateSlotsRequest{Slots: specs})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Slots
}

func TestCreateSlots(t *testing.T) {
	handler, _ := newTestServer(t)
	provider := uuid.New()
	token := signToken(t, provider, RoleExpert)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	slots := createTestSlots(t, handler, token, start, start.Add(time.Hour))

	require.Len(t, slots, 2)
	assert.Equal(t, provider, slots[0].ProviderID)
	assert.Equal(t, "open", slots[0].Status)
	assert.Equal(t, int64(500), slots[0].Fee)
}

func TestCreateSlotsRejectsInvalidBatch(t *testing.T) {
	handler, _ := newTestServer(t)
	provider := uuid.New()
	token := signToken(t, provider, RoleExpert)
	start := time.Now().Add(24 * time.Hour)

	req := CreateSlotsRequest{Slots: []SlotSpecRequest{
		{StartAt: start.Format(time.RFC3339), EndAt: start.Add(50 * time.Minute).Format(time.RFC3339)},
		{StartAt: start.Add(time.Hour).Format(time.RFC3339), EndAt: start.Add(time.Hour).Format(time.RFC3339)},
	}}

	rec := doJSON(t, handler, http.MethodPost, "/slots", token, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing created for the rejected batch.
	list := doJSON(t, handler, http.MethodGet, "/slots/provider/"+provider.String(), token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var resp SlotListResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)
}

func TestCreateSlotsRequiresExpertRole(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/slots", signToken(t, uuid.New(), RoleUser), CreateSlotsRequest{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/slots", "", CreateSlotsRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListProviderSlotsBadDate(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signToken(t, uuid.New(), RoleUser)

	rec := doJSON(t, handler, http.MethodGet, "/slots/provider/"+uuid.NewString()+"?date=18-02-2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}

func TestHoldFlow(t *testing.T) {
	handler, _ := newTestServer(t)
	provider := uuid.New()
	providerToken := signToken(t, provider, RoleExpert)
	userA := signToken(t, uuid.New(), RoleUser)
	userB := signToken(t, uuid.New(), RoleUser)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	slot := createTestSlots(t, handler, providerToken, start)[0]

	rec := doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/hold", userA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var held SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &held))
	assert.Equal(t, "held", held.Status)
	require.NotNil(t, held.HoldExpiresAt)
	assert.True(t, held.HoldExpiresAt.After(time.Now()))

	// The loser gets a bare conflict with no reason attached.
	rec = doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/hold", userB, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "slot_not_available", errResp.Error)
}

func TestConfirmFlow(t *testing.T) {
	handler, _ := newTestServer(t)
	provider := uuid.New()
	providerToken := signToken(t, provider, RoleExpert)
	userID := uuid.New()
	userToken := signToken(t, userID, RoleUser)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	slot := createTestSlots(t, handler, providerToken, start)[0]

	rec := doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/hold", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/confirm", userToken, ConfirmRequest{Notes: "first visit"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ConfirmResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "booked", resp.Slot.Status)
	assert.Equal(t, "confirmed", resp.Appointment.Status)
	assert.Equal(t, userID, resp.Appointment.UserID)
	assert.Equal(t, provider, resp.Appointment.ExpertID)
	assert.Equal(t, "unpaid", resp.Appointment.Payment.Status)
	assert.Equal(t, int64(500), resp.Appointment.Payment.Amount)
	assert.Equal(t, "first visit", resp.Appointment.UserNotes)

	// Confirming again conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/confirm", userToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The appointment shows up in both parties' listings.
	rec = doJSON(t, handler, http.MethodGet, "/appointments/my", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine AppointmentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine.Appointments, 1)

	rec = doJSON(t, handler, http.MethodGet, "/appointments/expert", providerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var theirs AppointmentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &theirs))
	require.Len(t, theirs.Appointments, 1)
	assert.Equal(t, mine.Appointments[0].ID, theirs.Appointments[0].ID)
}

func TestConfirmWithoutHold(t *testing.T) {
	handler, _ := newTestServer(t)
	providerToken := signToken(t, uuid.New(), RoleExpert)
	userToken := signToken(t, uuid.New(), RoleUser)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	slot := createTestSlots(t, handler, providerToken, start)[0]

	rec := doJSON(t, handler, http.MethodPost, "/slots/"+slot.ID.String()+"/confirm", userToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hold_expired_or_not_owned", resp.Error)
}

func TestCancelSlot(t *testing.T) {
	handler, _ := newTestServer(t)
	provider := uuid.New()
	providerToken := signToken(t, provider, RoleExpert)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	slot := createTestSlots(t, handler, providerToken, start)[0]

	rec := doJSON(t, handler, http.MethodDelete, "/slots/"+slot.ID.String(), providerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)

	// Another provider cannot cancel someone else's slot.
	slot2 := createTestSlots(t, handler, providerToken, start.Add(time.Hour))[0]
	otherToken := signToken(t, uuid.New(), RoleExpert)
	rec = doJSON(t, handler, http.MethodDelete, "/slots/"+slot2.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
