package mysql

import (
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

type sqlmockArg = driver.Value

type mockSession struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
}

func newMockSession(t *testing.T) *mockSession {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &mockSession{db: db, mock: mock}
}
