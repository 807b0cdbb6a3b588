package school

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newID() string { return uuid.NewString() }

// nextSeq bumps a named counter and returns the new value. Running inside
// the caller's transaction makes code assignment atomic with the insert,
// unlike deriving codes from a live row count.
func nextSeq(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var v int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO id_sequences (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = id_sequences.value + 1
		 RETURNING value`, name).Scan(&v)
	return v, err
}

func studentCode(now time.Time, seq int64) string {
	return fmt.Sprintf("STU%s%04d", now.Format("06"), seq)
}

func teacherCode(now time.Time, seq int64) string {
	return fmt.Sprintf("TCH%s%04d", now.Format("06"), seq)
}

func enrollmentCode(now time.Time, seq int64) string {
	return fmt.Sprintf("ENR%s%04d", now.Format("06"), seq)
}
