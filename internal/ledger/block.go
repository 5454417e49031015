package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity levels carried in block payloads.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
	SeveritySystem   = "SYSTEM"
)

// Payload is the security-event record sealed into a block. LogID is
// the application-level payload key; LogHash binds the block to the
// originating log line.
type Payload struct {
	LogID      string `json:"log_id"`
	LogHash    string `json:"log_hash,omitempty"`
	Severity   string `json:"severity,omitempty"`
	SourceIP   string `json:"source_ip,omitempty"`
	AttackType string `json:"attack_type,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	LogCount   int    `json:"logCount,omitempty"`
}

// HashLogLine computes the log fingerprint stored as Payload.LogHash:
// the hex SHA-256 of the pipe-joined log fields.
func HashLogLine(logID string, timestamp int64, sourceIP, severity, attackType, message string) string {
	line := fmt.Sprintf("%s|%d|%s|%s|%s|%s", logID, timestamp, sourceIP, severity, attackType, message)
	h := sha256.Sum256([]byte(line))
	return hex.EncodeToString(h[:])
}

// Block is one link of the chain. Hash covers index, previousHash,
// timestamp, payload, and nonce; PreviousHash is the predecessor's Hash
// (or "0" for the genesis block). Timestamps are Unix milliseconds.
type Block struct {
	Index        int     `json:"index"`
	Timestamp    int64   `json:"timestamp"`
	Data         Payload `json:"data"`
	PreviousHash string  `json:"previousHash"`
	Hash         string  `json:"hash"`
	Nonce        int     `json:"nonce"`
}

// computeHash digests the block's own fields. Payload JSON is
// deterministic (fixed struct field order), so recomputation on verify
// always reproduces the mined hash.
func (b *Block) computeHash() string {
	data, _ := json.Marshal(b.Data)
	h := sha256.Sum256([]byte(fmt.Sprintf("%d%s%d%s%d", b.Index, b.PreviousHash, b.Timestamp, data, b.Nonce)))
	return hex.EncodeToString(h[:])
}

// mine brute-forces the nonce until the hash carries the required count
// of leading zero hex characters. The context check is batched so
// cancellation costs nothing on the hot path; a cancelled mine leaves
// no trace on the chain.
func (b *Block) mine(ctx context.Context, difficulty int) error {
	target := strings.Repeat("0", difficulty)
	for !strings.HasPrefix(b.Hash, target) {
		if b.Nonce&0x0fff == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		b.Nonce++
		b.Hash = b.computeHash()
	}
	return nil
}
