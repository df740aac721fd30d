package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return sqlx.NewDb(conn, "pgx"), mock
}

func listingRows() *sqlmock.Rows {
	return sqlmock.NewRows(listingColumnNames)
}

func addListingRow(rows *sqlmock.Rows, id, owner uuid.UUID, title, category string, images string) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id.String(), owner.String(), title, "A description long enough", 100.0, category,
		"Berlin", images, nil, "seller@example.com", false, now, now)
}
