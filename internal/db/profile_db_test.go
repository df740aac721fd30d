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
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

var profileColumnNames = []string{
	"id", "username", "full_name", "avatar_url", "location", "bio", "member_since",
	"response_rate", "response_time", "verified", "updated_at",
}

func profileRow(id uuid.UUID, username string, avatar any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(profileColumnNames).
		AddRow(id.String(), username, "Jane Doe", avatar, nil, nil, now, nil, nil, false, now)
}

func TestProfileCreate(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO profiles").
		WithArgs(id, "jane", "Jane Doe").
		WillReturnRows(profileRow(id, "jane", nil))

	profile, err := repo.Create(context.Background(), models.ProfileInput{ID: id, Username: "jane", FullName: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, "jane", profile.Username)
	assert.False(t, profile.Verified)
	assert.Nil(t, profile.AvatarURL)
}

func TestProfileCreateDuplicateUsername(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)

	mock.ExpectQuery("INSERT INTO profiles").WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), models.ProfileInput{ID: uuid.New(), Username: "taken"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestProfileGetNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)

	mock.ExpectQuery("FROM profiles WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestProfileUpdateAndAvatar(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)
	id := uuid.New()
	bio := "Collector"
	url := "https://cdn.example/profile-images/" + id.String() + "/avatar.png"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET bio = $1, updated_at = now() WHERE id = $2")).
		WithArgs(bio, id).
		WillReturnRows(profileRow(id, "jane", nil))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET avatar_url = $1")).
		WithArgs(url, id).
		WillReturnRows(profileRow(id, "jane", url))

	_, err := repo.Update(context.Background(), id, models.ProfilePatch{Bio: &bio})
	require.NoError(t, err)

	profile, err := repo.SetAvatar(context.Background(), id, url)
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, url, *profile.AvatarURL)
}
