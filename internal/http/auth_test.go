package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-token"

func initDataFor(userID int64, authDate time.Time) string {
	return SignInitData(url.Values{
		"query_id":  {"AAHdF6IQAAAAAN0XohDhrOrc"},
		"user":      {`{"id":` + strconv.FormatInt(userID, 10) + `,"first_name":"Ivan","language_code":"ru"}`},
		"auth_date": {strconv.FormatInt(authDate.Unix(), 10)},
	}, testBotToken)
}

func TestValidateInitData(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("valid", func(t *testing.T) {
		user, err := ValidateInitData(initDataFor(42, now.Add(-time.Minute)), testBotToken, time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "Ivan", user.FirstName)
	})

	t.Run("wrong bot token", func(t *testing.T) {
		_, err := ValidateInitData(initDataFor(42, now), "other:token", time.Hour, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("tampered field", func(t *testing.T) {
		values, err := url.ParseQuery(initDataFor(42, now))
		require.NoError(t, err)
		values.Set("user", `{"id":1,"first_name":"Eve"}`)

		_, err = ValidateInitData(values.Encode(), testBotToken, time.Hour, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := ValidateInitData("auth_date=1&user=%7B%7D", testBotToken, time.Hour, now)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := ValidateInitData(initDataFor(42, now.Add(-2*time.Hour)), testBotToken, time.Hour, now)
		assert.ErrorIs(t, err, ErrInitDataExpired)
	})

	t.Run("freshness check disabled", func(t *testing.T) {
		_, err := ValidateInitData(initDataFor(42, now.Add(-48*time.Hour)), testBotToken, 0, now)
		assert.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ValidateInitData("", testBotToken, time.Hour, now)
		assert.ErrorIs(t, err, ErrMissingInitData)
	})

	t.Run("no user", func(t *testing.T) {
		data := SignInitData(url.Values{"auth_date": {strconv.FormatInt(now.Unix(), 10)}}, testBotToken)
		_, err := ValidateInitData(data, testBotToken, time.Hour, now)
		assert.ErrorIs(t, err, ErrNoUser)
	})
}

func TestTelegramAuthMiddleware(t *testing.T) {
	var seen TelegramUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = userFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("accepts signed init data", func(t *testing.T) {
		handler := TelegramAuthMiddleware(AuthConfig{BotToken: testBotToken, MaxAge: time.Hour})(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+initDataFor(7, time.Now()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, int64(7), seen.ID)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		handler := TelegramAuthMiddleware(AuthConfig{BotToken: testBotToken})(next)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		handler := TelegramAuthMiddleware(AuthConfig{BotToken: "another:token"})(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+initDataFor(7, time.Now()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("insecure mode trusts user header", func(t *testing.T) {
		handler := TelegramAuthMiddleware(AuthConfig{Insecure: true})(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Telegram-User-ID", "99")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, int64(99), seen.ID)
	})
}
