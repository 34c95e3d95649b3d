package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/fixture-runner/metrics"
	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestService(t *testing.T) {
	svc := New(log.NewLogger(log.DiscardHandler()))
	assert.Empty(t, svc.Addr())

	require.NoError(t, svc.Start("127.0.0.1", 0))
	t.Cleanup(func() {
		require.NoError(t, svc.Shutdown(context.Background()))
	})
	base := "http://" + svc.Addr()

	t.Run("healthz", func(t *testing.T) {
		resp, body := get(t, base+"/healthz", http.Header{"Origin": []string{"http://dashboard.local"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", body)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("metrics", func(t *testing.T) {
		metrics.RecordCase(types.TestStatusPass, 0)

		resp, body := get(t, base+"/metrics", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "fixtures_cases_total")
	})

	t.Run("double start", func(t *testing.T) {
		assert.Error(t, svc.Start("127.0.0.1", 0))
	})
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, New(nil).Shutdown(context.Background()))
}
