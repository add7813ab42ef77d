package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteTransaction_CommitKeepsChanges(t *testing.T) {
	tm := NewTransactionManager()
	var undone bool

	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, OnRollback(ctx, func() { undone = true }))
		return nil
	})

	require.NoError(t, err)
	assert.False(t, undone)
}

func TestExecuteTransaction_FailureRunsUndoNewestFirst(t *testing.T) {
	tm := NewTransactionManager()
	boom := errors.New("ledger write failed")
	var order []int

	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, 1) })
		OnRollback(ctx, func() { order = append(order, 2) })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{2, 1}, order)
}

func TestExecuteTransaction_PanicRollsBack(t *testing.T) {
	tm := NewTransactionManager()
	var undone bool

	assert.Panics(t, func() {
		_ = tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = true })
			panic("boom")
		})
	})
	assert.True(t, undone)
}

func TestOnRollback_OutsideTransaction(t *testing.T) {
	assert.False(t, OnRollback(context.Background(), func() {}))
}

func TestExecuteTransaction_CommitHooksRunInOrderAfterSuccess(t *testing.T) {
	tm := NewTransactionManager()
	var order []int

	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, OnCommit(ctx, func() { order = append(order, 1) }))
		OnCommit(ctx, func() { order = append(order, 2) })
		assert.Empty(t, order, "commit hooks must wait for the unit of work to finish")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestExecuteTransaction_FailureSkipsCommitHooks(t *testing.T) {
	tm := NewTransactionManager()
	var published bool

	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		OnCommit(ctx, func() { published = true })
		return errors.New("ledger write failed")
	})

	require.Error(t, err)
	assert.False(t, published)
}

func TestOnCommit_OutsideTransaction(t *testing.T) {
	assert.False(t, OnCommit(context.Background(), func() {}))
}
