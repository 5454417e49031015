package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Chain, *mux.Router) {
	t.Helper()
	c := New(1, nil)
	r := mux.NewRouter()
	NewHandler(c, nil).Register(r)
	return c, r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHandlerAppend(t *testing.T) {
	chain, r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/log", map[string]interface{}{
		"log_id":      "log-1",
		"severity":    SeverityCritical,
		"source_ip":   "10.0.0.1",
		"attack_type": "SQL_INJECTION",
		"message":     "union select detected",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Success bool `json:"success"`
		Block   struct {
			Index        int    `json:"index"`
			Hash         string `json:"hash"`
			PreviousHash string `json:"previousHash"`
			LogHash      string `json:"log_hash"`
			Nonce        int    `json:"nonce"`
		} `json:"block"`
		Message string `json:"message"`
	}
	decodeBody(t, rec, &out)
	require.True(t, out.Success)
	require.Equal(t, 1, out.Block.Index)
	require.NotEmpty(t, out.Block.Hash)
	require.NotEmpty(t, out.Block.LogHash)

	require.Equal(t, 2, chain.Len())
	require.True(t, chain.Verify())

	// defaults were filled in for omitted timestamp and count
	b, ok := chain.GetByLogID("log-1")
	require.True(t, ok)
	require.NotZero(t, b.Data.Timestamp)
	require.GreaterOrEqual(t, b.Data.LogCount, 12)
	require.LessOrEqual(t, b.Data.LogCount, 76)
}

func TestHandlerAppendValidation(t *testing.T) {
	_, r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/log", map[string]interface{}{"severity": SeverityLow})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest("POST", "/log", bytes.NewBufferString("{broken"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerBlocksAndRecent(t *testing.T) {
	_, r := newTestRouter(t)

	for _, id := range []string{"log-1", "log-2", "log-3"} {
		rec := doJSON(t, r, "POST", "/log", map[string]interface{}{
			"log_id": id, "severity": SeverityLow, "message": "event",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, r, "GET", "/blocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all struct {
		Blocks      []Block `json:"blocks"`
		TotalBlocks int     `json:"totalBlocks"`
		IsValid     bool    `json:"isValid"`
	}
	decodeBody(t, rec, &all)
	require.Equal(t, 4, all.TotalBlocks)
	require.Len(t, all.Blocks, 4)
	require.True(t, all.IsValid)

	rec = doJSON(t, r, "GET", "/blocks/recent?count=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Blocks []Block `json:"blocks"`
	}
	decodeBody(t, rec, &recent)
	require.Len(t, recent.Blocks, 2)
	require.Equal(t, 3, recent.Blocks[0].Index)
}

func TestHandlerLookups(t *testing.T) {
	chain, r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/log", map[string]interface{}{
		"log_id": "log-7", "severity": SeverityHigh, "message": "event",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	b, ok := chain.GetByLogID("log-7")
	require.True(t, ok)

	rec = doJSON(t, r, "GET", "/block/hash/"+b.Hash, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, "GET", "/block/log/log-7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Block Block `json:"block"`
	}
	decodeBody(t, rec, &out)
	require.Equal(t, b.Hash, out.Block.Hash)

	rec = doJSON(t, r, "GET", "/block/hash/deadbeef", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, "GET", "/block/log/log-404", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerVerify(t *testing.T) {
	chain, r := newTestRouter(t)

	rec := doJSON(t, r, "GET", "/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Valid       bool   `json:"valid"`
		TotalBlocks int    `json:"totalBlocks"`
		Message     string `json:"message"`
	}
	decodeBody(t, rec, &out)
	require.True(t, out.Valid)
	require.Equal(t, 1, out.TotalBlocks)

	// tamper and watch the endpoint flip
	_, err := chain.Append(context.Background(), Payload{LogID: "log-1", Message: "event"})
	require.NoError(t, err)
	chain.blocks[1].Data.Message = "rewritten"

	rec = doJSON(t, r, "GET", "/verify", nil)
	decodeBody(t, rec, &out)
	require.False(t, out.Valid)
}

func TestHandlerStatsAndHealth(t *testing.T) {
	_, r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/log", map[string]interface{}{
		"log_id": "log-1", "severity": SeverityCritical, "message": "event",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	decodeBody(t, rec, &stats)
	require.Equal(t, 2, stats.TotalBlocks)
	require.True(t, stats.IsValid)
	require.Equal(t, 1, stats.SeverityDistribution[SeverityCritical])

	rec = doJSON(t, r, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status          string `json:"status"`
		BlockchainValid bool   `json:"blockchainValid"`
		TotalBlocks     int    `json:"totalBlocks"`
		LatestBlock     string `json:"latestBlock"`
	}
	decodeBody(t, rec, &health)
	require.Equal(t, "running", health.Status)
	require.True(t, health.BlockchainValid)
	require.Equal(t, 2, health.TotalBlocks)
	require.NotEmpty(t, health.LatestBlock)
}
