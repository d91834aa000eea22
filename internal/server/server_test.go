package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/banana-detector/internal/config"
	"github.com/Brownie44l1/banana-detector/internal/detector"
	"github.com/Brownie44l1/banana-detector/internal/handlers"
	"github.com/Brownie44l1/banana-detector/internal/model"
	"github.com/Brownie44l1/banana-detector/internal/preprocess"
)

type constSession struct{}

func (constSession) Run([]float32) ([]float32, error) { return []float32{0.1}, nil }
func (constSession) Close() {}

func testRouter() *gin.Engine {
	d := detector.New(constSession{}, preprocess.New(224), model.DefaultThreshold)
	h := handlers.NewHandler(d, 1<<20)
	return NewRouter(h, config.ServerConfig{Mode: gin.TestMode, MaxUploadBytes: 1 << 20})
}

func TestRouterRequestID(t *testing.T) {
	r := testRouter()
	const clientID = "3f1c2a9e-7b4d-4e8a-9c61-0d2b5f7a8e14"

	tests := []struct {
		name   string
		header string
		echo   bool
	}{
		{"missing", "", false},
		{"valid uuid", clientID, true},
		{"not a uuid", "abc-123", false},
		{"log injection", "x\nlevel=error msg=forged", false},
		{"overlong", strings.Repeat("a", 4096), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set(requestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			got := rec.Header().Get(requestIDHeader)
			_, err := uuid.Parse(got)
			require.NoError(t, err)
			if tt.echo {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodOptions, "/predict/image", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterServesPage(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Banana Detector")
}

func TestServerShutdown(t *testing.T) {
	srv := New(config.ServerConfig{Port: "0", ReadTimeout: time.Second}, http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
