package ledger

import (
	"context"
	"sync"
	"time"
)

const genesisPreviousHash = "0"

// DefaultRecentCount is how many blocks Recent returns when the caller
// does not say.
const DefaultRecentCount = 10

// Chain is the append-only, hash-linked block sequence. Appends are
// serialized by appendMu, which is held for the whole mining run; mu
// guards the slice itself and is only taken briefly, so reads never
// wait on a miner.
type Chain struct {
	mu       sync.RWMutex
	appendMu sync.Mutex

	blocks     []Block
	difficulty int
	metrics    *Metrics
}

// New creates a chain holding only the genesis block. The genesis block
// is not mined; its hash is accepted as axiomatic.
func New(difficulty int, metrics *Metrics) *Chain {
	c := &Chain{difficulty: difficulty, metrics: metrics}
	g := Block{
		Index:     0,
		Timestamp: time.Now().UnixMilli(),
		Data: Payload{
			LogID:    "genesis",
			LogHash:  "0000000000000000",
			Severity: SeveritySystem,
			Message:  "Genesis Block - SurakshaNet Blockchain Initialized",
			LogCount: 1,
		},
		PreviousHash: genesisPreviousHash,
	}
	g.Hash = g.computeHash()
	c.blocks = []Block{g}
	c.metrics.setChainLength(1)
	return c
}

func (c *Chain) Difficulty() int { return c.difficulty }

// Append mines a block over the payload and links it to the chain tip.
// This is the only slow operation in the system; expected cost grows as
// 16^difficulty hash attempts. Cancelling ctx aborts the mine with the
// chain unchanged.
func (c *Chain) Append(ctx context.Context, data Payload) (Block, error) {
	c.appendMu.Lock()
	defer c.appendMu.Unlock()

	// appendMu excludes all other mutators, so index and tip hash are
	// stable for the duration of the mine.
	c.mu.RLock()
	b := Block{
		Index:        len(c.blocks),
		Timestamp:    time.Now().UnixMilli(),
		Data:         data,
		PreviousHash: c.blocks[len(c.blocks)-1].Hash,
	}
	c.mu.RUnlock()
	b.Hash = b.computeHash()

	start := time.Now()
	if err := b.mine(ctx, c.difficulty); err != nil {
		return Block{}, err
	}

	c.mu.Lock()
	c.blocks = append(c.blocks, b)
	length := len(c.blocks)
	c.mu.Unlock()

	c.metrics.blockMined(time.Since(start), b.Nonce)
	c.metrics.setChainLength(length)
	return b, nil
}

// snapshot returns a consistent copy of the chain for lock-free scans.
func (c *Chain) snapshot() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Blocks returns the full chain, oldest first.
func (c *Chain) Blocks() []Block { return c.snapshot() }

func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Latest returns the chain tip.
func (c *Chain) Latest() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

func verifyBlocks(blocks []Block) bool {
	for i := 1; i < len(blocks); i++ {
		current := &blocks[i]
		if current.Hash != current.computeHash() {
			return false
		}
		if current.PreviousHash != blocks[i-1].Hash {
			return false
		}
	}
	return true
}

// Verify recomputes every non-genesis block's digest and checks linkage
// to its predecessor, returning false on the first violation.
func (c *Chain) Verify() bool {
	return verifyBlocks(c.snapshot())
}

// GetByHash finds a block by its hash.
func (c *Chain) GetByHash(hash string) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.blocks {
		if c.blocks[i].Hash == hash {
			return c.blocks[i], true
		}
	}
	return Block{}, false
}

// GetByLogID finds a block by its payload's log ID.
func (c *Chain) GetByLogID(logID string) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.blocks {
		if c.blocks[i].Data.LogID == logID {
			return c.blocks[i], true
		}
	}
	return Block{}, false
}

// Recent returns up to n blocks, most recent first. n <= 0 falls back
// to DefaultRecentCount.
func (c *Chain) Recent(n int) []Block {
	if n <= 0 {
		n = DefaultRecentCount
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n > len(c.blocks) {
		n = len(c.blocks)
	}
	out := make([]Block, 0, n)
	for i := len(c.blocks) - 1; i >= len(c.blocks)-n; i-- {
		out = append(out, c.blocks[i])
	}
	return out
}

// BlockSummary identifies a block without its payload.
type BlockSummary struct {
	Index     int    `json:"index"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// Stats is the aggregate view of the chain.
type Stats struct {
	TotalBlocks          int            `json:"totalBlocks"`
	IsValid              bool           `json:"isValid"`
	SeverityDistribution map[string]int `json:"severityDistribution"`
	LatestBlock          BlockSummary   `json:"latestBlock"`
}

// ComputeStats derives the stats from a snapshot of the current chain.
func (c *Chain) ComputeStats() Stats {
	blocks := c.snapshot()

	dist := map[string]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}
	for i := range blocks {
		if _, known := dist[blocks[i].Data.Severity]; known {
			dist[blocks[i].Data.Severity]++
		}
	}

	last := blocks[len(blocks)-1]
	return Stats{
		TotalBlocks:          len(blocks),
		IsValid:              verifyBlocks(blocks),
		SeverityDistribution: dist,
		LatestBlock: BlockSummary{
			Index:     last.Index,
			Hash:      last.Hash,
			Timestamp: last.Timestamp,
		},
	}
}
