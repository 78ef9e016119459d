package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrReferenced is returned when a row cannot be deleted because resources point at it.
	ErrReferenced = errors.New("row is referenced by resources")
	// ErrDuplicate is returned when a natural key is already taken.
	ErrDuplicate = errors.New("duplicate natural key")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// translateWrite maps driver errors of a write into repository sentinels.
func translateWrite(err error, op string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected returns sql.ErrNoRows when a write touched nothing.
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// deleteUnreferenced removes a reference row only when no resource points at
// it. The row lock serialises the check against inserts that reference it.
func deleteUnreferenced(ctx context.Context, db *sqlx.DB, table, refColumn, id string) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, fmt.Sprintf("SELECT id FROM %s WHERE id = $1 FOR UPDATE", table), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock %s: %w", table, err)
	}

	var refs int
	if err = tx.GetContext(ctx, &refs, fmt.Sprintf("SELECT COUNT(*) FROM resources WHERE %s = $1", refColumn), id); err != nil {
		return fmt.Errorf("count %s references: %w", table, err)
	}
	if refs > 0 {
		err = ErrReferenced
		return err
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", table, err)
	}
	return nil
}

// existsExcluding runs an exact-match natural key lookup.
func existsExcluding(ctx context.Context, db *sqlx.DB, table, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1", table, column)
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check %s %s: %w", table, column, err)
	}
	return true, nil
}
