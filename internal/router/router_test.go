package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"termsheet/internal/domain"
	"termsheet/internal/handler"
	"termsheet/internal/middleware"
	"termsheet/internal/router"
	"termsheet/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func engine(secret string, svc *mocks.MockExtractionService) *gin.Engine {
	return router.Setup(
		middleware.NewTokenValidator(secret, "termsheet"),
		handler.NewExtractionHandler(svc, 0, nil),
		handler.NewHealthHandler(nil),
		router.Options{MetricsPath: "/metrics"},
	)
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := engine("secret", new(mocks.MockExtractionService))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/readyz", "").Code)

	w := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RequiresToken(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Prompts").Return([]domain.ExtractionPrompt{})
	r := engine("secret", svc)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/prompts", "").Code)

	token, err := middleware.NewTokenValidator("secret", "termsheet").Issue("ops", jwt.RegisteredClaims{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/prompts", token).Code)
}

func TestRouter_AuthDisabled(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("ListRuns", mock.Anything, 0, 20).Return([]domain.Run{}, 0, nil)
	r := engine("", svc)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/runs", "").Code)
	svc.AssertExpectations(t)
}
