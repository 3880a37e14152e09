package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/ofx"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
)

// setupCLI points the CLI at a fresh database under a temporary home.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "qflow.db")
	t.Setenv("HOME", dir)
	t.Setenv("QFLOW_DATABASE_PATH", dbPath)
	t.Setenv("QFLOW_ACTOR", "")
	t.Setenv("QFLOW_LOGGING_LEVEL", "error")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "qflow %s\n%s", strings.Join(args, " "), out)
	return out
}

func onlyRequest(t *testing.T, dbPath string) model.QueueRequest {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	reqs, err := store.ListRequests(context.Background(), service.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	return reqs[0]
}

func TestVersion(t *testing.T) {
	setupCLI(t)
	out := mustRun(t, "version")
	assert.Equal(t, "qflow dev\n", out)
}

func TestRequestLifecycle(t *testing.T) {
	dbPath := setupCLI(t)

	mustRun(t, "init", "--id", "admin", "--credential", "s3cret")
	mustRun(t, "catalog", "add", "--as", "admin", "--id", "bandage", "--name", "Bandage roll", "--price", "3.50")
	mustRun(t, "accounts", "add", "--as", "admin", "--id", "ward-a", "--name", "Ward A", "--credential", "first-login")

	out := mustRun(t, "queue", "enqueue", "--as", "ward-a", "bandage", "2")
	assert.Contains(t, out, "2 x bandage for ward-a")

	req := onlyRequest(t, dbPath)
	assert.Equal(t, model.StatusPending, req.Status)

	out = mustRun(t, "queue", "list", "--as", "ward-a")
	assert.Contains(t, out, "Bandage roll")

	_, err := run(t, "queue", "step", "--as", "ward-a", req.ID)
	assert.Equal(t, "forbidden", common.Kind(err))

	mustRun(t, "queue", "step", "--as", "admin", req.ID)
	mustRun(t, "queue", "step", "--as", "admin", req.ID)
	out = mustRun(t, "queue", "step", "--as", "admin", req.ID)
	assert.Contains(t, out, "7.00")
	assert.Equal(t, model.StatusCompleted, onlyRequest(t, dbPath).Status)

	_, err = run(t, "queue", "complete", "--as", "admin", req.ID)
	assert.Equal(t, "invalid_transition", common.Kind(err))

	out = mustRun(t, "queue", "list", "--as", "ward-a")
	assert.Contains(t, out, "Nothing in the queue")

	out = mustRun(t, "history", "list", "--as", "ward-a")
	assert.Contains(t, out, "Bandage roll")
	assert.Contains(t, out, "7.00")

	statement := filepath.Join(t.TempDir(), "ward-a.ofx")
	mustRun(t, "history", "export", "--as", "ward-a", "--format", "ofx", "-o", statement)

	f, err := os.Open(statement)
	require.NoError(t, err)
	lines, err := ofx.ReadStatement(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "ward-a", lines[0].AccountID)

	out = mustRun(t, "history", "reconcile", "--as", "ward-a", statement)
	assert.Contains(t, out, "All 1 statement lines match")

	out = mustRun(t, "summary", "--as", "admin")
	assert.Contains(t, out, "7.00")
}

func TestBootstrapOnlyOnce(t *testing.T) {
	setupCLI(t)
	mustRun(t, "init", "--id", "admin", "--credential", "s3cret")

	_, err := run(t, "init", "--id", "other", "--credential", "s3cret")
	assert.Equal(t, "forbidden", common.Kind(err))
}

func TestActorRequired(t *testing.T) {
	setupCLI(t)
	mustRun(t, "init", "--id", "admin", "--credential", "s3cret")

	_, err := run(t, "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no acting account")

	_, err = run(t, "summary", "--as", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown acting account ghost")
}

func TestUsersCannotFileForOthers(t *testing.T) {
	setupCLI(t)
	mustRun(t, "init", "--id", "admin", "--credential", "s3cret")
	mustRun(t, "catalog", "add", "--as", "admin", "--id", "bandage", "--name", "Bandage roll", "--price", "3.50")
	mustRun(t, "accounts", "add", "--as", "admin", "--id", "ward-a", "--credential", "x")
	mustRun(t, "accounts", "add", "--as", "admin", "--id", "clinic-b", "--class", "external", "--credential", "x")

	_, err := run(t, "queue", "enqueue", "--as", "ward-a", "--account", "clinic-b", "bandage", "1")
	assert.Equal(t, "forbidden", common.Kind(err))

	out := mustRun(t, "queue", "enqueue", "--as", "admin", "--account", "clinic-b", "bandage", "1")
	assert.Contains(t, out, "for clinic-b")

	_, err = run(t, "queue", "enqueue", "--as", "ward-a", "bandage", "lots")
	assert.Error(t, err)
}

func TestHistoryOptions(t *testing.T) {
	f := historyFlags{class: "external", sortBy: "value", since: "2025-03-01", until: "2025-03-31", ascending: true}
	opts, err := f.options()
	require.NoError(t, err)

	assert.Equal(t, model.ClassExternal, opts.AccountClass)
	assert.True(t, opts.Ascending)
	require.NotNil(t, opts.Since)
	require.NotNil(t, opts.Until)
	assert.True(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Equal(*opts.Since))
	assert.True(t, time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC).Equal(*opts.Until))

	for _, bad := range []historyFlags{{class: "vip"}, {sortBy: "colour"}, {since: "March"}, {until: "31/03/2025"}} {
		_, err := bad.options()
		assert.Equal(t, "validation", common.Kind(err), "%+v", bad)
	}
}

func TestHistoryScope(t *testing.T) {
	admin := service.Actor{AccountID: "admin", Access: model.AccessAdmin}
	user := service.Actor{AccountID: "ward-a", Access: model.AccessUser}

	scope, err := (&historyFlags{}).scope(admin)
	require.NoError(t, err)
	assert.Empty(t, scope)

	scope, err = (&historyFlags{accountID: "clinic-b"}).scope(admin)
	require.NoError(t, err)
	assert.Equal(t, "clinic-b", scope)

	scope, err = (&historyFlags{}).scope(user)
	require.NoError(t, err)
	assert.Equal(t, "ward-a", scope)

	_, err = (&historyFlags{accountID: "clinic-b"}).scope(user)
	assert.Equal(t, "forbidden", common.Kind(err))
}

func TestReconcile(t *testing.T) {
	records := map[string]model.TransactionRecord{
		"rec-1": {ID: "rec-1", AccountID: "ward-a", Value: decimal.RequireFromString("7")},
		"rec-2": {ID: "rec-2", AccountID: "clinic-b", Value: decimal.RequireFromString("1.25")},
	}
	lines := []ofx.StatementLine{
		{FiTID: "rec-1", AccountID: "ward-a", Amount: decimal.RequireFromString("-7.00")},
		{FiTID: "rec-2", AccountID: "clinic-b", Amount: decimal.RequireFromString("-1.00")},
		{FiTID: "rec-9", AccountID: "ward-a", Amount: decimal.RequireFromString("-1")},
	}

	problems := reconcile(lines, records, service.Actor{AccountID: "admin", Access: model.AccessAdmin})
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "rec-2: amount 1.00, ledger value 1.25")
	assert.Contains(t, problems[1], "rec-9: no such ledger record")

	// Users cannot confirm records of other accounts.
	problems = reconcile(lines[:2], records, service.Actor{AccountID: "ward-a", Access: model.AccessUser})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "rec-2: no such ledger record")
}
