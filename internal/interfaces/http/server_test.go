package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(&config.ServerConfig{HTTPPort: "127.0.0.1:0"}, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
}

func TestServer_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(&config.ServerConfig{HTTPPort: "127.0.0.1:0"}, nil, nil, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
