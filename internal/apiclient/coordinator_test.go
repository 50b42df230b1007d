// AngelaMos | 2026
// coordinator_test.go

package apiclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorBegin(t *testing.T) {
	t.Run("first caller leads", func(t *testing.T) {
		c := newCoordinator(5 * time.Second)

		role, wait := c.begin(time.Now())
		assert.Equal(t, beginLeader, role)
		assert.Nil(t, wait)
	})

	t.Run("caller during refresh waits even inside cooldown", func(t *testing.T) {
		c := newCoordinator(5 * time.Second)
		now := time.Now()

		role, _ := c.begin(now)
		require.Equal(t, beginLeader, role)

		// Arrives within the cooldown window while a refresh is in
		// flight: must queue, not be rejected.
		role, wait := c.begin(now.Add(time.Millisecond))
		assert.Equal(t, beginWait, role)
		assert.NotNil(t, wait)
	})

	t.Run("new attempt inside cooldown is rejected", func(t *testing.T) {
		c := newCoordinator(5 * time.Second)
		now := time.Now()

		role, _ := c.begin(now)
		require.Equal(t, beginLeader, role)
		c.finish(refreshOutcome{token: "tok"})

		role, _ = c.begin(now.Add(time.Second))
		assert.Equal(t, beginCooled, role)
	})

	t.Run("new attempt after cooldown leads again", func(t *testing.T) {
		c := newCoordinator(5 * time.Second)
		now := time.Now()

		role, _ := c.begin(now)
		require.Equal(t, beginLeader, role)
		c.finish(refreshOutcome{token: "tok"})

		role, _ = c.begin(now.Add(6 * time.Second))
		assert.Equal(t, beginLeader, role)
	})
}

func TestCoordinatorFinishDrainsInArrivalOrder(t *testing.T) {
	c := newCoordinator(5 * time.Second)
	now := time.Now()

	role, _ := c.begin(now)
	require.Equal(t, beginLeader, role)

	var waits []<-chan refreshOutcome
	for range 3 {
		role, wait := c.begin(now)
		require.Equal(t, beginWait, role)
		waits = append(waits, wait)
	}

	c.finish(refreshOutcome{token: "new-token"})

	for _, wait := range waits {
		outcome := <-wait
		require.NoError(t, outcome.err)
		assert.Equal(t, "new-token", outcome.token)
	}

	role, _ = c.begin(now.Add(6 * time.Second))
	assert.Equal(t, beginLeader, role, "coordinator should be idle after finish")
}

func TestCoordinatorResetRejectsWaiters(t *testing.T) {
	c := newCoordinator(5 * time.Second)
	now := time.Now()

	role, _ := c.begin(now)
	require.Equal(t, beginLeader, role)

	_, wait := c.begin(now)

	rejection := errors.New("signed out")
	c.reset(rejection)

	outcome := <-wait
	assert.ErrorIs(t, outcome.err, rejection)

	// cooldown cleared: an immediate new attempt leads
	role, _ = c.begin(now)
	assert.Equal(t, beginLeader, role)
}
