package singleton

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestAcquire_PortAvailable(t *testing.T) {
	l, err := Acquire(freeAddr(t))
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}

func TestAcquire_HealthyInstance(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(l)
	defer srv.Close()

	got, err := Acquire(l.Addr().String())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, got)
}

func TestAcquire_UnhealthyInstance(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	got, err := Acquire(l.Addr().String())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8765/health", healthURL(":8765"))
	assert.Equal(t, "http://127.0.0.1:9000/health", healthURL("127.0.0.1:9000"))
}
