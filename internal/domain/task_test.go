package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskType(t *testing.T) {
	tt, err := NewTaskType("ORDER_CANCEL")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeOrderCancel, tt)

	_, err = NewTaskType("NOT_A_TYPE")
	assert.ErrorIs(t, err, ErrInvalidTaskType)
}

func TestNewPriority_DefaultsToNormal(t *testing.T) {
	p, err := NewPriority(0)
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, p)
}

func TestNewPriority_Invalid(t *testing.T) {
	_, err := NewPriority(7)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusDeadLetter.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}

func TestStatus_Executable(t *testing.T) {
	assert.True(t, StatusRetryPending.Executable())
	assert.True(t, StatusFailed.Executable())
	assert.False(t, StatusProcessing.Executable())
	assert.False(t, StatusCompleted.Executable())
}

func TestTask_EffectiveMaxRetries(t *testing.T) {
	task := &Task{}
	assert.Equal(t, 5, task.EffectiveMaxRetries(5))

	override := 3
	task.MaxRetries = &override
	assert.Equal(t, 3, task.EffectiveMaxRetries(5))
}

func TestTask_IsLocked(t *testing.T) {
	now := time.Now()
	task := &Task{}
	assert.False(t, task.IsLocked(now))

	holder := "worker-1"
	future := now.Add(time.Minute)
	task.LockedBy = &holder
	task.LockedUntil = &future
	assert.True(t, task.IsLocked(now))

	past := now.Add(-time.Minute)
	task.LockedUntil = &past
	assert.False(t, task.IsLocked(now))
}

func TestTruncateStackTrace(t *testing.T) {
	short := "boom"
	assert.Equal(t, short, TruncateStackTrace(short))

	long := make([]byte, maxStackTraceBytes+100)
	for i := range long {
		long[i] = 'x'
	}
	truncated := TruncateStackTrace(string(long))
	assert.LessOrEqual(t, len(truncated), maxStackTraceBytes)
	assert.Contains(t, truncated, "truncated")
}

func TestWrapInvalid(t *testing.T) {
	err := wrapInvalid(ErrInvalidTaskType, "bogus")
	assert.True(t, errors.Is(err, ErrInvalidTaskType))
	assert.Contains(t, err.Error(), "bogus")
}
