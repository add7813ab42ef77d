// Package db holds the storage-agnostic unit of work contract.
package db

import "context"

// TransactionFunc runs inside a unit of work. Every store call made with ctx
// joins the same transaction.
type TransactionFunc func(ctx context.Context) error

// TransactionManager commits the work of fn when it returns nil and discards all
// of it otherwise.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}
