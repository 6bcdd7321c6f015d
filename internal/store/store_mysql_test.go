package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/sqlrun/internal/retry"
	"github.com/loykin/sqlrun/internal/store/mysql"
)

// Integration test with MySQL via testcontainers
func TestMySQLStore_Ledger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "test",
			"MYSQL_DATABASE":      "sqlrun_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("port: 3306  MySQL Community Server"),
		),
	}
	my, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping MySQL container test: %v", err)
		return
	}
	defer func() { _ = my.Terminate(ctx) }()

	host, err := my.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := my.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	url := fmt.Sprintf("mysql://root:test@%s:%s/sqlrun_test", host, port.Port())

	st, err := Open(ctx, Options{URL: url, Retry: retry.WithMaxRetries(10)})
	if err != nil {
		t.Fatalf("Open(MySQL): %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.LoadApplied(ctx); !errors.Is(err, ErrHistoryTableMissing) {
		t.Fatalf("expected ErrHistoryTableMissing before init, got %v", err)
	}
	if err := st.EnsureInitialized(ctx); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if ok, err := mysql.HasTable(ctx, st.DB(), st.table); err != nil || !ok {
		t.Fatalf("HasTable => %v,%v; want true,nil", ok, err)
	}
	if ok, err := mysql.HasColumn(ctx, st.DB(), st.table, "applied_at"); err != nil || !ok {
		t.Fatalf("HasColumn => %v,%v; want true,nil", ok, err)
	}
	if ok, err := mysql.HasIndex(ctx, st.DB(), st.table, "PRIMARY"); err != nil || !ok {
		t.Fatalf("HasIndex => %v,%v; want true,nil", ok, err)
	}

	release, err := st.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer release()

	at := time.Date(2024, 1, 2, 3, 4, 5, 600000000, time.UTC)
	tx, err := st.DB().BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"20240102_000000_000000", "20240101_000000_000001"} {
		if err := st.Record(ctx, tx, Entry{Key: k, Description: "m", AppliedAt: at}); err != nil {
			t.Fatalf("Record(%s): %v", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	keys, err := st.LoadApplied(ctx)
	if err != nil || len(keys) != 2 || keys[0] != "20240101_000000_000001" {
		t.Fatalf("LoadApplied => %v, %v", keys, err)
	}
	entries, err := st.Entries(ctx, 1)
	if err != nil || len(entries) != 1 || !entries[0].AppliedAt.Equal(at) {
		t.Fatalf("Entries(1) => %+v, %v", entries, err)
	}
}
