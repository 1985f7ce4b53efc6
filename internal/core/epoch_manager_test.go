package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochManager_IdleByDefault(t *testing.T) {
	m := NewEpochManager()
	assert.Equal(t, TypecheckingStatus{}, m.GetStatus())
	assert.False(t, m.TryCancelSlowPath(5), "nothing to cancel")
}

func TestEpochManager_CommitWithoutCancel(t *testing.T) {
	m := NewEpochManager()
	m.StartCommitEpoch(3)
	assert.Equal(t, TypecheckingStatus{SlowPathRunning: true, Epoch: 3}, m.GetStatus())

	ran := false
	committed := m.TryCommitEpoch(3, true, func() {
		ran = true
		assert.False(t, m.WasTypecheckingCanceled())
	})
	assert.True(t, ran)
	assert.True(t, committed)
	assert.False(t, m.GetStatus().SlowPathRunning)
}

func TestEpochManager_CancelMidFlight(t *testing.T) {
	m := NewEpochManager()
	m.StartCommitEpoch(3)

	committed := m.TryCommitEpoch(3, true, func() {
		require.True(t, m.TryCancelSlowPath(4))
		assert.True(t, m.WasTypecheckingCanceled())
		// Later edits may cancel again until the run notices.
		require.True(t, m.TryCancelSlowPath(5))
		assert.True(t, m.GetStatus().SlowPathRunning)
	})
	assert.False(t, committed)

	status := m.GetStatus()
	assert.False(t, status.SlowPathRunning)
	assert.Equal(t, uint32(0), status.Epoch, "rolled back to the last committed epoch")
	assert.False(t, m.WasTypecheckingCanceled())
}

func TestEpochManager_NonCancelableAlwaysCommits(t *testing.T) {
	m := NewEpochManager()
	ran := false
	assert.True(t, m.TryCommitEpoch(9, false, func() { ran = true }))
	assert.True(t, ran)
	assert.False(t, m.GetStatus().SlowPathRunning)
}

func TestEpochManager_CancelAfterCommitFails(t *testing.T) {
	m := NewEpochManager()
	m.StartCommitEpoch(1)
	require.True(t, m.TryCommitEpoch(1, true, func() {}))

	assert.False(t, m.TryCancelSlowPath(2))
	status := m.GetStatus()
	assert.Equal(t, TypecheckingStatus{SlowPathRunning: false, Epoch: 1}, status)
}

func TestEpochManager_RaceCancelAndCommit(t *testing.T) {
	for i := 0; i < 50; i++ {
		m := NewEpochManager()
		m.StartCommitEpoch(1)

		var wg sync.WaitGroup
		var canceled bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			canceled = m.TryCancelSlowPath(2)
		}()
		committed := m.TryCommitEpoch(1, true, func() {})
		wg.Wait()

		// Exactly one side wins.
		assert.NotEqual(t, canceled, committed, "iteration %d", i)
		assert.False(t, m.GetStatus().SlowPathRunning)
	}
}
