package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepoRotate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	exp := time.Now().UTC().Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash=. FOR UPDATE").
		WithArgs("old-hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).
			AddRow(int64(7), time.Now().UTC().Add(time.Hour)))
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash=.").
		WithArgs("old-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(int64(7), "new-hash", exp).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	userID, err := repo.Rotate(context.Background(), "old-hash", "new-hash", exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoRotateUnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM refresh_tokens").
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = repo.Rotate(context.Background(), "gone", "next", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoRotateExpiredToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, expires_at FROM refresh_tokens").
		WithArgs("stale").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).
			AddRow(int64(9), time.Now().UTC().Add(-time.Minute)))
	mock.ExpectRollback()

	_, err = repo.Rotate(context.Background(), "stale", "next", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at < UTC_TIMESTAMP").
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, repo.DeleteExpired(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoDeleteIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash=.").
		WithArgs("absent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "absent"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
