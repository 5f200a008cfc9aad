package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServeExposesMetricsAndHealthz(t *testing.T) {
	s, err := Serve(0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	base := "http://127.0.0.1:" + strconv.Itoa(s.ln.Addr().(*net.TCPAddr).Port)

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestServeFailsOnBusyPort(t *testing.T) {
	s, err := Serve(0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	port := s.ln.Addr().(*net.TCPAddr).Port
	_, err = Serve(port)
	assert.Error(t, err)
}
