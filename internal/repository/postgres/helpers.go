package postgres

import (
	"database/sql"
	"strconv"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

// checkVersion turns a zero-row optimistic update into a version conflict
func checkVersion(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewErrorf("%s was modified concurrently", entity).
			WithHintf("The %s changed since it was read, please retry", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}
