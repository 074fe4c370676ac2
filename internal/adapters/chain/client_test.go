package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCurrentBlockReadsAndCachesTip(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		calls.Add(1)
		_, _ = w.Write([]byte(`{"height":"1207","hash":"00ab"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL+"/", ts.Client(), time.Minute)
	block, err := client.CurrentBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1207), block.Height)
	require.Equal(t, "00ab", block.Hash)

	_, err = client.CurrentBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestCurrentBlockSurfacesBridgeErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, ts.Client(), time.Minute).CurrentBlock(context.Background())
	require.ErrorContains(t, err, "upstream down")
}

func TestStaticBridgeAdvances(t *testing.T) {
	bridge := NewStaticBridge(10, "h")
	bridge.Advance(5)
	block, err := bridge.CurrentBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(15), block.Height)
}
