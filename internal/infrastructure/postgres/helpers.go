package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
