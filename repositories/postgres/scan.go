package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldops/accessctl/repositories"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// classifyWriteError wraps unique violations in repositories.ErrDuplicate
func classifyWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", repositories.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// nullableJSON maps an empty document to SQL NULL so JSONB columns never
// receive a zero-length value.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
