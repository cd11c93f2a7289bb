package bot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBot() *Bot {
	return &Bot{convs: make(map[int64]convState)}
}

func TestUpdateConvIsAtomic(t *testing.T) {
	b := testBot()
	b.setConv(1, convState{kind: convClaim, step: 0})

	// every update is a read-modify-write under the lock, so concurrent
	// transitions from the same user cannot lose increments
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.updateConv(1, func(c *convState) bool {
				c.step++
				return true
			})
		}()
	}
	wg.Wait()

	conv, ok := b.getConv(1)
	require.True(t, ok)
	require.Equal(t, 100, conv.step)
}

func TestUpdateConvGatesOnCurrentStep(t *testing.T) {
	b := testBot()
	b.setConv(9, convState{kind: convTopup, step: stepPickDriver})

	pick := func(targetID int64) bool {
		return b.updateConv(9, func(c *convState) bool {
			if c.kind != convTopup || c.step != stepPickDriver {
				return false
			}
			c.targetID = targetID
			c.step = stepAmount
			return true
		})
	}

	// concurrent driver picks: exactly one advances the conversation
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := int64(1); i <= 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if pick(id) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, won)

	conv, ok := b.getConv(9)
	require.True(t, ok)
	require.Equal(t, stepAmount, conv.step)
	require.NotZero(t, conv.targetID)
}

func TestUpdateConvAfterClear(t *testing.T) {
	b := testBot()
	b.setConv(2, convState{kind: convSalary, step: stepPickDriver})
	b.clearConv(2)

	applied := b.updateConv(2, func(c *convState) bool {
		c.step = stepAmount
		return true
	})
	require.False(t, applied, "a cleared conversation must not be revived")

	_, ok := b.getConv(2)
	require.False(t, ok)
}
