/*

Package sim is an in-process execution environment for the vault: journaled ERC20
tokens, a concentrated-liquidity pool and a payload-driven swap router. It backs the
devnet binary and the package tests.

*/

package sim

import (
	"sync"

	"github.com/teahouse-finance/tvault/internal/logger"
)

var simLogger = logger.GetForComponent("sim_chain")

// journaled is implemented by every stateful object registered with a Chain.
type journaled interface {
	snapshot() any
	restore(state any)
}

// Chain is the shared clock and journal for simulated collaborators.
type Chain struct {
	mu        sync.Mutex
	now       uint64
	members   []journaled
	snapshots [][]any
}

// NewChain returns a chain whose clock starts at blockTime.
func NewChain(blockTime uint64) *Chain {
	return &Chain{now: blockTime}
}

func (c *Chain) register(member journaled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, member)
}

// BlockTime returns the current block timestamp.
func (c *Chain) BlockTime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetBlockTime moves the clock. The clock never goes backwards.
func (c *Chain) SetBlockTime(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

// AdvanceTime moves the clock forward by seconds.
func (c *Chain) AdvanceTime(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// Snapshot captures every registered member.
func (c *Chain) Snapshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := make([]any, len(c.members))
	for i, member := range c.members {
		states[i] = member.snapshot()
	}
	c.snapshots = append(c.snapshots, states)
	return len(c.snapshots) - 1
}

// RevertToSnapshot restores members to snapshot id and drops it and every later snapshot.
func (c *Chain) RevertToSnapshot(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < 0 || id >= len(c.snapshots) {
		simLogger.Error().Int("snapshot", id).Msg("Revert to unknown snapshot ignored")
		return
	}
	for i, state := range c.snapshots[id] {
		c.members[i].restore(state)
	}
	c.snapshots = c.snapshots[:id]
	simLogger.Debug().Int("snapshot", id).Msg("Reverted chain state")
}

// ReleaseSnapshot drops snapshot id and every later snapshot.
func (c *Chain) ReleaseSnapshot(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id >= 0 && id < len(c.snapshots) {
		c.snapshots = c.snapshots[:id]
	}
}
