package ledger

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Nishat2006/surakshanet/internal/httpx"
)

// Handler exposes the chain over HTTP+JSON.
type Handler struct {
	chain  *Chain
	logger *zap.Logger
}

func NewHandler(chain *Chain, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chain: chain, logger: logger}
}

// Register mounts the ledger routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/log", h.handleAppend).Methods("POST")
	r.HandleFunc("/blocks", h.handleBlocks).Methods("GET")
	r.HandleFunc("/blocks/recent", h.handleRecent).Methods("GET")
	r.HandleFunc("/block/hash/{hash}", h.handleByHash).Methods("GET")
	r.HandleFunc("/block/log/{logId}", h.handleByLogID).Methods("GET")
	r.HandleFunc("/verify", h.handleVerify).Methods("GET")
	r.HandleFunc("/stats", h.handleStats).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
}

type appendRequest struct {
	LogID      string `json:"log_id"`
	Severity   string `json:"severity"`
	SourceIP   string `json:"source_ip"`
	AttackType string `json:"attack_type"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	LogCount   int    `json:"log_count"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var in appendRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.LogID == "" || in.Message == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing required fields: log_id, message")
		return
	}

	if in.Timestamp == 0 {
		in.Timestamp = time.Now().UnixMilli()
	}
	if in.LogCount == 0 {
		// The ingestion pipeline usually supplies the count; fall back to
		// the reference's 12-76 range when it doesn't.
		in.LogCount = 12 + rand.IntN(65)
	}

	payload := Payload{
		LogID:      in.LogID,
		LogHash:    HashLogLine(in.LogID, in.Timestamp, in.SourceIP, in.Severity, in.AttackType, in.Message),
		Severity:   in.Severity,
		SourceIP:   in.SourceIP,
		AttackType: in.AttackType,
		Message:    in.Message,
		Timestamp:  in.Timestamp,
		LogCount:   in.LogCount,
	}

	block, err := h.chain.Append(r.Context(), payload)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away mid-mine; nothing was appended.
			return
		}
		h.logger.Error("append failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to append block")
		return
	}

	h.logger.Info("block mined",
		zap.Int("index", block.Index),
		zap.String("hash", block.Hash),
		zap.Int("nonce", block.Nonce),
		zap.String("log_id", in.LogID),
	)

	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"block": map[string]interface{}{
			"index":        block.Index,
			"hash":         block.Hash,
			"previousHash": block.PreviousHash,
			"timestamp":    block.Timestamp,
			"log_hash":     payload.LogHash,
			"nonce":        block.Nonce,
		},
		"message": "Log successfully added to blockchain",
	})
}

func (h *Handler) handleBlocks(w http.ResponseWriter, r *http.Request) {
	blocks := h.chain.Blocks()
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"blocks":      blocks,
		"totalBlocks": len(blocks),
		"isValid":     h.chain.Verify(),
	})
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"blocks":  h.chain.Recent(count),
		"isValid": h.chain.Verify(),
	})
}

func (h *Handler) handleByHash(w http.ResponseWriter, r *http.Request) {
	block, ok := h.chain.GetByHash(mux.Vars(r)["hash"])
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "BLOCK_NOT_FOUND", "Block not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"block": block})
}

func (h *Handler) handleByLogID(w http.ResponseWriter, r *http.Request) {
	block, ok := h.chain.GetByLogID(mux.Vars(r)["logId"])
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "BLOCK_NOT_FOUND", "Block not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"block": block})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	valid := h.chain.Verify()
	msg := "Blockchain is valid"
	if !valid {
		msg = "Blockchain has been tampered with!"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":       valid,
		"totalBlocks": h.chain.Len(),
		"message":     msg,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.chain.ComputeStats())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "running",
		"blockchainValid": h.chain.Verify(),
		"totalBlocks":     h.chain.Len(),
		"latestBlock":     h.chain.Latest().Hash,
	})
}
