package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
)

var sessionColumnNames = []string{"id", "account_id", "refresh_token_hash", "expires_at", "created_at", "revoked_at"}

func TestCreateAccountNormalizesEmail(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewAccountRepository(conn)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("jane@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at", "last_sign_in_at"}).
			AddRow(id.String(), "jane@example.com", "hash", time.Now(), nil))

	account, err := repo.CreateAccount(context.Background(), "  Jane@Example.com ", "hash")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Nil(t, account.LastSignInAt)
}

func TestCreateAccountDuplicate(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewAccountRepository(conn)

	mock.ExpectQuery("INSERT INTO accounts").WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateAccount(context.Background(), "jane@example.com", "hash")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestGetAccountByEmailMissing(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewAccountRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetAccountByEmail(context.Background(), "Nobody@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRotateSession(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewAccountRepository(conn)
	oldID, newID, account := uuid.New(), uuid.New(), uuid.New()
	expires := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE auth_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL")).
		WithArgs(oldID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO auth_sessions").
		WithArgs(account, "newhash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(newID.String(), account.String(), "newhash", expires, time.Now(), nil))
	mock.ExpectCommit()

	session, err := repo.RotateSession(context.Background(), oldID, account, "newhash", expires)
	require.NoError(t, err)
	assert.Equal(t, newID, session.ID)
}

func TestRotateSessionAlreadyRevoked(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewAccountRepository(conn)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE auth_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.RotateSession(context.Background(), uuid.New(), uuid.New(), "h", time.Now())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
