package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/ride-dispatch/internal/domain"
)

// Postgres SQLSTATE codes the repo translates into domain errors.
const (
	sqlstateQueryCanceled      = "57014"
	sqlstateForeignKeyViolated = "23503"
)

// notFound maps pgx.ErrNoRows to domain.ErrNotFound and classifies anything else.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return classify(err)
}

// classify translates store failures that callers must distinguish:
// timeouts become domain.ErrUpstreamTimeout and foreign key violations on the
// rider/driver columns become domain.ErrReference. The original error stays
// in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, domain.ErrReference) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateQueryCanceled:
			// statement_timeout expired on the server.
			return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		case sqlstateForeignKeyViolated:
			field := "driver_id"
			if strings.Contains(pgErr.ConstraintName, "rider") {
				field = "rider_id"
			}
			return fmt.Errorf("%w: %w", domain.ReferenceError(field, "does not reference an existing user"), err)
		}
	}
	return err
}
