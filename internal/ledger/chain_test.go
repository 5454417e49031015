package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPayload(logID, severity, message string) Payload {
	ts := time.Now().UnixMilli()
	return Payload{
		LogID:      logID,
		LogHash:    HashLogLine(logID, ts, "10.0.0.1", severity, "SQL_INJECTION", message),
		Severity:   severity,
		SourceIP:   "10.0.0.1",
		AttackType: "SQL_INJECTION",
		Message:    message,
		Timestamp:  ts,
		LogCount:   12,
	}
}

func TestNewChainGenesis(t *testing.T) {
	c := New(2, nil)

	require.Equal(t, 1, c.Len())
	g := c.Latest()
	require.Equal(t, 0, g.Index)
	require.Equal(t, "0", g.PreviousHash)
	require.Equal(t, "genesis", g.Data.LogID)
	require.Equal(t, SeveritySystem, g.Data.Severity)
	require.Equal(t, g.computeHash(), g.Hash)
	require.True(t, c.Verify())
}

func TestAppendLinksAndVerifies(t *testing.T) {
	c := New(1, nil)
	ctx := context.Background()

	payloads := []Payload{
		testPayload("log-1", SeverityCritical, "union select detected"),
		testPayload("log-2", SeverityHigh, "path traversal attempt"),
		testPayload("log-3", SeverityLow, "rate limit warning"),
	}
	for _, p := range payloads {
		b, err := c.Append(ctx, p)
		require.NoError(t, err)
		require.Equal(t, b.computeHash(), b.Hash)
	}

	require.Equal(t, 4, c.Len())
	require.True(t, c.Verify())

	blocks := c.Blocks()
	for i := 1; i < len(blocks); i++ {
		require.Equal(t, i, blocks[i].Index)
		require.Equal(t, blocks[i-1].Hash, blocks[i].PreviousHash)
	}
}

func TestAppendMeetsDifficulty(t *testing.T) {
	c := New(2, nil)

	b, err := c.Append(context.Background(), testPayload("log-1", SeverityMedium, "probe"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(b.Hash, "00"), "hash %q lacks difficulty prefix", b.Hash)
}

func TestVerifyDetectsTampering(t *testing.T) {
	build := func(t *testing.T) *Chain {
		c := New(1, nil)
		for _, p := range []Payload{
			testPayload("log-1", SeverityCritical, "first"),
			testPayload("log-2", SeverityHigh, "second"),
			testPayload("log-3", SeverityLow, "third"),
		} {
			_, err := c.Append(context.Background(), p)
			require.NoError(t, err)
		}
		require.True(t, c.Verify())
		return c
	}

	t.Run("payload message", func(t *testing.T) {
		c := build(t)
		c.blocks[2].Data.Message = "rewritten history"
		require.False(t, c.Verify())
	})
	t.Run("payload severity", func(t *testing.T) {
		c := build(t)
		c.blocks[2].Data.Severity = SeverityLow
		require.False(t, c.Verify())
	})
	t.Run("timestamp", func(t *testing.T) {
		c := build(t)
		c.blocks[2].Timestamp++
		require.False(t, c.Verify())
	})
	t.Run("nonce", func(t *testing.T) {
		c := build(t)
		c.blocks[2].Nonce++
		require.False(t, c.Verify())
	})
	t.Run("previous hash", func(t *testing.T) {
		c := build(t)
		c.blocks[2].PreviousHash = c.blocks[1].PreviousHash
		require.False(t, c.Verify())
	})
	t.Run("recomputed hash without re-mining the successor", func(t *testing.T) {
		c := build(t)
		c.blocks[2].Data.Message = "rewritten history"
		c.blocks[2].Hash = c.blocks[2].computeHash()
		// block 2 is now self-consistent but block 3 no longer links
		require.False(t, c.Verify())
	})
}

func TestAppendCancelled(t *testing.T) {
	// difficulty high enough that the initial hash virtually never
	// satisfies the target before the first context check
	c := New(6, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Append(ctx, testPayload("log-1", SeverityHigh, "never lands"))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, c.Len())
	require.True(t, c.Verify())
}

func TestLookups(t *testing.T) {
	c := New(1, nil)
	b, err := c.Append(context.Background(), testPayload("log-42", SeverityHigh, "lookup me"))
	require.NoError(t, err)

	byHash, ok := c.GetByHash(b.Hash)
	require.True(t, ok)
	require.Equal(t, b.Index, byHash.Index)

	_, ok = c.GetByHash("deadbeef")
	require.False(t, ok)

	byLog, ok := c.GetByLogID("log-42")
	require.True(t, ok)
	require.Equal(t, b.Hash, byLog.Hash)

	_, ok = c.GetByLogID("log-404")
	require.False(t, ok)
}

func TestRecent(t *testing.T) {
	c := New(1, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Append(ctx, testPayload("log-"+string(rune('a'+i)), SeverityLow, "event"))
		require.NoError(t, err)
	}

	recent := c.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, 3, recent[0].Index)
	require.Equal(t, 2, recent[1].Index)

	// more than the chain holds returns everything, newest first
	all := c.Recent(100)
	require.Len(t, all, 4)
	require.Equal(t, 0, all[3].Index)

	// non-positive falls back to the default count
	require.Len(t, c.Recent(0), 4)
	require.Len(t, c.Recent(-5), 4)
}

func TestComputeStats(t *testing.T) {
	c := New(1, nil)
	ctx := context.Background()
	for _, p := range []Payload{
		testPayload("log-1", SeverityCritical, "one"),
		testPayload("log-2", SeverityCritical, "two"),
		testPayload("log-3", SeverityHigh, "three"),
		testPayload("log-4", SeverityLow, "four"),
	} {
		_, err := c.Append(ctx, p)
		require.NoError(t, err)
	}

	stats := c.ComputeStats()
	require.Equal(t, 5, stats.TotalBlocks)
	require.True(t, stats.IsValid)
	require.Equal(t, 2, stats.SeverityDistribution[SeverityCritical])
	require.Equal(t, 1, stats.SeverityDistribution[SeverityHigh])
	require.Equal(t, 0, stats.SeverityDistribution[SeverityMedium])
	require.Equal(t, 1, stats.SeverityDistribution[SeverityLow])
	// genesis SYSTEM block is excluded from the distribution
	require.NotContains(t, stats.SeverityDistribution, SeveritySystem)
	require.Equal(t, c.Latest().Hash, stats.LatestBlock.Hash)
	require.Equal(t, 4, stats.LatestBlock.Index)
}

func TestConcurrentAppendsAndReads(t *testing.T) {
	c := New(1, nil)
	ctx := context.Background()

	const writers = 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Append(ctx, testPayload("log-"+string(rune('0'+i)), SeverityMedium, "concurrent"))
			require.NoError(t, err)
		}(i)
	}
	// readers run against the chain while miners hold appendMu
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Verify()
			_ = c.Recent(3)
			_ = c.Latest()
		}()
	}
	wg.Wait()

	require.Equal(t, writers+1, c.Len())
	require.True(t, c.Verify())

	// indexes are gapless despite the races
	blocks := c.Blocks()
	for i, b := range blocks {
		require.Equal(t, i, b.Index)
	}
}

func TestHashLogLineDeterministic(t *testing.T) {
	a := HashLogLine("log-1", 1700000000000, "10.0.0.1", SeverityHigh, "XSS", "script tag")
	b := HashLogLine("log-1", 1700000000000, "10.0.0.1", SeverityHigh, "XSS", "script tag")
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	c := HashLogLine("log-1", 1700000000001, "10.0.0.1", SeverityHigh, "XSS", "script tag")
	require.NotEqual(t, a, c)
}
