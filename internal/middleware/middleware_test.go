package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/pkg/jwt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-admin-secret-key-123456789"

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func protectedRouter(jwtService *jwt.Service) *gin.Engine {
	logger, _ := test.NewNullLogger()
	router := setupTestRouter()
	router.GET("/calculate-lesson-total", AdminAuth(jwtService, logger), func(c *gin.Context) {
		claims, ok := GetAdminClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": claims.Email})
	})
	return router
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/calculate-lesson-total", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_Success(t *testing.T) {
	jwtService := jwt.NewService(testSecret, time.Hour)
	token, err := jwtService.GenerateAccessToken("owner@lessons.test", []string{jwt.RoleAdmin})
	require.NoError(t, err)

	w := doRequest(protectedRouter(jwtService), "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner@lessons.test")
}

func TestAdminAuth_Rejections(t *testing.T) {
	jwtService := jwt.NewService(testSecret, time.Hour)

	expiredToken, err := jwt.NewService(testSecret, -time.Minute).GenerateAccessToken("owner@lessons.test", []string{jwt.RoleAdmin})
	require.NoError(t, err)
	studentToken, err := jwtService.GenerateAccessToken("student@lessons.test", []string{"student"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing_auth_header"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid_auth_format"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "invalid_auth_format"},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized, "invalid_token"},
		{"expired token", "Bearer " + expiredToken, http.StatusUnauthorized, "token_expired"},
		{"not an admin", "Bearer " + studentToken, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(protectedRouter(jwtService), tt.header)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
			assert.NotContains(t, w.Body.String(), "owner@lessons.test")
		})
	}
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/config", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("Generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/config", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/config", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := setupTestRouter()
	router.Use(RequestID(), RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/schedule-lesson", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := []struct {
		method string
		path   string
		level  logrus.Level
	}{
		{http.MethodGet, "/ok", logrus.InfoLevel},
		{http.MethodPost, "/schedule-lesson", logrus.WarnLevel},
		{http.MethodGet, "/boom", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, tt.level, entry.Level, tt.path)
		assert.Equal(t, tt.path, entry.Data["path"])
		assert.NotEmpty(t, entry.Data["request_id"])
	}
}

func TestMetrics(t *testing.T) {
	router := setupTestRouter()
	router.Use(Metrics())
	router.GET("/payment-method/:customer_id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/payment-method/:customer_id", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payment-method/cus_1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payment-method/cus_2", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeUnmatched := testutil.ToFloat64(unmatched)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}

func TestRecovery(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := setupTestRouter()
	router.Use(Recovery(logger), RequestID())
	router.GET("/panic", func(c *gin.Context) { panic("lesson ledger corrupted") })
	router.GET("/panic-error", func(c *gin.Context) { panic(errors.New("nil customer")) })

	tests := []struct {
		path    string
		message string
	}{
		{"/panic", "lesson ledger corrupted"},
		{"/panic-error", "nil customer"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
		assert.Equal(t, tt.message, body["error"]["message"])

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, tt.path, entry.Data["path"])
	}
}
