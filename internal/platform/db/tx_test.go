package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==== MOCK TRANSACTION ====

type stubTx struct {
	pgx.Tx

	commitErr error
	commits   int
	rollbacks int
}

func (tx *stubTx) Commit(ctx context.Context) error {
	tx.commits++
	return tx.commitErr
}

func (tx *stubTx) Rollback(ctx context.Context) error {
	tx.rollbacks++
	return nil
}

type stubBeginner struct {
	tx       *stubTx
	beginErr error
	opts     pgx.TxOptions
}

func (b *stubBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	tx := &stubTx{}
	pool := &stubBeginner{tx: tx}

	var got pgx.Tx
	err := WithTx(context.Background(), pool, func(tx pgx.Tx) error {
		got = tx
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, pgx.Tx(tx), got)
	assert.Equal(t, pgx.RepeatableRead, pool.opts.IsoLevel)
	assert.Equal(t, 1, tx.commits)
}

func TestWithTxRollsBackAndReturnsCallbackError(t *testing.T) {
	sentinel := errors.New("order rejected")
	tx := &stubTx{}
	pool := &stubBeginner{tx: tx}

	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		return sentinel
	})
	// The callback error must come back unwrapped so callers can match
	// domain sentinels with errors.Is.
	assert.Equal(t, sentinel, err)
	assert.Zero(t, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestWithTxBeginFailure(t *testing.T) {
	pool := &stubBeginner{beginErr: errors.New("pool exhausted")}

	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestWithTxCommitFailure(t *testing.T) {
	tx := &stubTx{commitErr: errors.New("connection reset")}
	pool := &stubBeginner{tx: tx}

	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
}
