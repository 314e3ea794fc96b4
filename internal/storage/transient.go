package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"maizekg/internal/util"
)

// IsTransient reports whether err is worth retrying: dropped connections,
// serialization failures, deadlocks, server restarts and per-call timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, util.ErrTransientStore) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001",
			pgErr.Code == "40P01",
			strings.HasPrefix(pgErr.Code, "57P0"):
			return true
		}
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	if neo4j.IsRetryable(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// storeErr wraps err with op context and tags transient causes with
// util.ErrTransientStore.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, util.ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
