// Package memory provides a TransactionManager for the in-memory stores. Stores
// register compensating actions which run, newest first, when the unit of work fails,
// and publish actions which run, in order, once it succeeds.
package memory

import (
	"context"
	"sync"

	"carrental/pkg/db"
)

type txKey struct{}

type txLog struct {
	mu       sync.Mutex
	undo     []func()
	onCommit []func()
}

func (l *txLog) pushUndo(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = append(l.undo, fn)
}

func (l *txLog) pushCommit(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCommit = append(l.onCommit, fn)
}

func (l *txLog) rollback() {
	l.mu.Lock()
	fns := l.undo
	l.undo, l.onCommit = nil, nil
	l.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func (l *txLog) commit() {
	l.mu.Lock()
	fns := l.onCommit
	l.undo, l.onCommit = nil, nil
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type transactionManager struct{}

func NewTransactionManager() db.TransactionManager {
	return &transactionManager{}
}

func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) (err error) {
	log := &txLog{}

	defer func() {
		if r := recover(); r != nil {
			log.rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	log.commit()
	return nil
}

// OnRollback registers undo to run if the enclosing transaction fails. It returns
// false, and registers nothing, when ctx is not inside a transaction.
func OnRollback(ctx context.Context, undo func()) bool {
	log, ok := ctx.Value(txKey{}).(*txLog)
	if !ok {
		return false
	}
	log.pushUndo(undo)
	return true
}

// OnCommit registers publish to run once the enclosing transaction succeeds. Writes
// staged until then stay invisible to readers. It returns false, and registers
// nothing, when ctx is not inside a transaction.
func OnCommit(ctx context.Context, publish func()) bool {
	log, ok := ctx.Value(txKey{}).(*txLog)
	if !ok {
		return false
	}
	log.pushCommit(publish)
	return true
}

