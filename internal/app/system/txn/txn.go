// Package txn runs multi-collection writes in a MongoDB transaction when the
// deployment supports one.
//
// Standalone servers (the usual development and test setup) reject
// transactions; there the function runs directly on the caller's context.
// Callers order their writes so that a partial run can be repeated safely.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func is the unit of work. ctx is a mongo.SessionContext inside a
// transaction and the caller's context otherwise; use it for every
// operation.
type Func func(ctx context.Context) error

// Run executes fn inside a transaction, or without one when transactions
// are not supported. log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		if log != nil {
			log.Debug("no session available, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions not supported, running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions.
//
// Known codes:
//   - 20: IllegalOperation ("Transaction numbers are only allowed on a replica set member or mongos")
//   - 263: OperationNotSupportedInTransaction
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 263:
			return true
		}
	}

	// Some servers only say so in the message; two hits keep false
	// positives out.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
