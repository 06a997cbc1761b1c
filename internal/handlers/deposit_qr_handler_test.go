package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coinvault/backend/internal/services"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func newTestHandler(t *testing.T) (*DepositQRHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Redis is optional for the QR flow; code issuance works without it.
	return NewDepositQRHandler(services.NewDepositQRService(db, nil)), mock
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "userID", userID))
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "roles", "balance", "balance_btc",
		"version", "is_transaction_allowed", "wallet_btc_address", "created_at", "updated_at",
	}).AddRow("user-1", "user@example.com", "John", "Doe", "{user}", "10.10", "0",
		1, true, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", now, now)
}

func TestGenerateDepositQR(t *testing.T) {
	t.Run("returns a code and image for the caller", func(t *testing.T) {
		h, mock := newTestHandler(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WithArgs("user-1").
			WillReturnRows(userRows())

		r := withUser(httptest.NewRequest("POST", "/deposits/qr", bytes.NewBufferString(`{"amount":"0.01"}`)), "user-1")
		w := httptest.NewRecorder()

		h.GenerateDepositQR(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["code"])
		assert.NotEmpty(t, resp["qrImage"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty body is allowed", func(t *testing.T) {
		h, mock := newTestHandler(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WithArgs("user-1").
			WillReturnRows(userRows())

		r := withUser(httptest.NewRequest("POST", "/deposits/qr", bytes.NewBuffer(nil)), "user-1")
		w := httptest.NewRecorder()

		h.GenerateDepositQR(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing auth context", func(t *testing.T) {
		h, _ := newTestHandler(t)

		r := httptest.NewRequest("POST", "/deposits/qr", bytes.NewBuffer(nil))
		w := httptest.NewRecorder()

		h.GenerateDepositQR(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-numeric amount rejected", func(t *testing.T) {
		h, _ := newTestHandler(t)

		r := withUser(httptest.NewRequest("POST", "/deposits/qr", bytes.NewBufferString(`{"amount":"lots"}`)), "user-1")
		w := httptest.NewRecorder()

		h.GenerateDepositQR(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func newResolveTestHandler(t *testing.T) (*DepositQRHandler, redismock.ClientMock) {
	t.Helper()
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	return NewDepositQRHandler(services.NewDepositQRService(db, redisClient)), redisMock
}

func TestResolveDepositQR(t *testing.T) {
	t.Run("redeems a code once", func(t *testing.T) {
		h, redisMock := newResolveTestHandler(t)

		redisMock.ExpectGet("deposit_qr:code-1").SetVal(`{"userId":"user-1","currency":"BTC"}`)
		redisMock.ExpectDel("deposit_qr:code-1").SetVal(1)

		r := withUser(httptest.NewRequest("POST", "/deposits/qr/resolve", bytes.NewBufferString(`{"code":"code-1"}`)), "user-1")
		w := httptest.NewRecorder()

		h.ResolveDepositQR(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var payload map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "user-1", payload["userId"])
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired code is a client error", func(t *testing.T) {
		h, redisMock := newResolveTestHandler(t)

		redisMock.ExpectGet("deposit_qr:stale").RedisNil()

		r := withUser(httptest.NewRequest("POST", "/deposits/qr/resolve", bytes.NewBufferString(`{"code":"stale"}`)), "user-1")
		w := httptest.NewRecorder()

		h.ResolveDepositQR(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("missing code rejected", func(t *testing.T) {
		h, _ := newResolveTestHandler(t)

		r := withUser(httptest.NewRequest("POST", "/deposits/qr/resolve", bytes.NewBufferString(`{}`)), "user-1")
		w := httptest.NewRecorder()

		h.ResolveDepositQR(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing auth context", func(t *testing.T) {
		h, _ := newResolveTestHandler(t)

		r := httptest.NewRequest("POST", "/deposits/qr/resolve", bytes.NewBufferString(`{"code":"code-1"}`))
		w := httptest.NewRecorder()

		h.ResolveDepositQR(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
