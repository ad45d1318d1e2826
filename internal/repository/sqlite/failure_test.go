package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fluxgate/internal/apperror"
)

// These tests drive the store through go-sqlmock to cover driver failures
// that a healthy SQLite file never produces on demand.

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

var errDiskIO = errors.New("disk I/O error")

func TestGetUserByID_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \?`).
		WithArgs("u1").
		WillReturnError(errDiskIO)

	_, err := db.GetUserByID(context.Background(), "u1")

	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskIO)
	assert.False(t, errors.Is(err, apperror.ErrNotFound), "driver failure must not look like a missing user")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCredits_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`UPDATE users SET credits = credits - \?`).
		WithArgs(int64(1), sqlmock.AnyArg(), "u1", int64(1)).
		WillReturnError(errDiskIO)

	_, ok, err := db.DebitCredits(context.Background(), "u1", 1)

	assert.False(t, ok)
	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCredits_ReturnsNewBalance(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`UPDATE users SET credits = credits - \?`).
		WithArgs(int64(2), sqlmock.AnyArg(), "u1", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(int64(8)))

	balance, ok, err := db.DebitCredits(context.Background(), "u1", 2)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustCredits_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`UPDATE users SET credits = credits \+ \?`).
		WithArgs(int64(1), sqlmock.AnyArg(), "u1").
		WillReturnError(errDiskIO)

	_, err := db.AdjustCredits(context.Background(), "u1", 1)

	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSession_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnError(errDiskIO)

	err := db.ReplaceSession(context.Background(), newTestSession("u1", "tok", 0))

	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredSessions_ReportsRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \?`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := db.DeleteExpiredSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
