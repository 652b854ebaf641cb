package pgadapter

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMissingRuleTable is returned when the rule table does not exist.
// Run Migrate (or create the table yourself) before loading policy.
var ErrMissingRuleTable = errors.New("pgadapter: rule table not found")

// IsMissingRuleTableErr returns true if err is or wraps ErrMissingRuleTable.
func IsMissingRuleTableErr(err error) bool {
	return errors.Is(err, ErrMissingRuleTable)
}

// pgUndefinedTable is the undefined_table SQLSTATE.
const pgUndefinedTable = "42P01"

var missingTableWarn sync.Once

// mapError wraps a statement error with its operation and maps
// undefined-table failures to ErrMissingRuleTable. The first missing-table
// hit also logs a setup hint; setup problems otherwise only surface as
// errors deep inside enforcer calls.
func (a *Adapter) mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		missingTableWarn.Do(func() {
			log.Printf("[pergola] WARNING: rule table %q not found. Run Migrate to create it.", a.table)
		})
		return fmt.Errorf("%s: %w: %v", op, ErrMissingRuleTable, err)
	}
	return fmt.Errorf("pgadapter: %s: %w", op, err)
}
