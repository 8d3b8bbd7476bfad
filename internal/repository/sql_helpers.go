package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// buildSetClause renders "col1 = $n, col2 = $n+1" for a partial update,
// returning the clause and the matching argument slice.
func buildSetClause(start int, cols []string, args []interface{}) (string, []interface{}) {
	parts := make([]string, 0, len(cols))
	for i, col := range cols {
		parts = append(parts, fmt.Sprintf("%s = $%d", col, start+i))
	}
	return strings.Join(parts, ", "), args
}
