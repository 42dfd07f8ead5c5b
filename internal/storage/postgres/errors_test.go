package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConstraintError(t *testing.T) {
	check := &pgconn.PgError{Code: pgErrCheckViolation}
	assert.True(t, isConstraintError(check))
	assert.True(t, isConstraintError(fmt.Errorf("exec: %w", check)))
	assert.True(t, isConstraintError(&pgconn.PgError{Code: pgErrNotNullViolation}))

	assert.False(t, isConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isConstraintError(errors.New("boom")))
	assert.False(t, isConstraintError(nil))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, isNotFoundError(errors.New("boom")))
}
