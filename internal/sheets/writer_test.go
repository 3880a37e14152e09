package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

type recordedCall struct {
	method string
	path   string
	body   string
}

type fakeSheetsAPI struct {
	updateStatus int
	calls        []recordedCall
	mu           sync.Mutex
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","sheets":[{"properties":{"sheetId":42,"title":"Ledger"}}]}`)
	case r.Method == http.MethodPut && f.updateStatus != 0:
		w.WriteHeader(f.updateStatus)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"bad range"}}`)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeSheetsAPI) callsMatching(method, pathPart string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.method == method && strings.Contains(c.path, pathPart) {
			out = append(out, c)
		}
	}
	return out
}

func newTestWriter(t *testing.T, api *fakeSheetsAPI) *Writer {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	config := DefaultConfig()
	config.SpreadsheetID = "sheet-1"
	config.RetryDelay = time.Millisecond
	return newWriter(config, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleExport() LedgerExport {
	completed := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	rows := []query.HistoryRow{
		{
			TransactionRecord: model.TransactionRecord{
				CompletedAt:   completed,
				RequestedAt:   completed.Add(-time.Hour),
				Value:         decimal.RequireFromString("7"),
				CatalogItemID: "bandage",
				AccountID:     "clinic-b",
				AccountClass:  model.ClassExternal,
				Quantity:      2,
			},
			ItemName:    "Bandage roll",
			AccountName: "Clinic B",
		},
		{
			TransactionRecord: model.TransactionRecord{
				CompletedAt:   completed.Add(-time.Minute),
				RequestedAt:   completed.Add(-2 * time.Hour),
				Value:         decimal.RequireFromString("2"),
				CatalogItemID: "retired-item",
				AccountID:     "ward-a",
				AccountClass:  model.ClassInternal,
				Quantity:      20,
			},
			AccountName: "Ward A",
		},
	}
	return NewLedgerExport("March", rows)
}

func TestNewLedgerExport(t *testing.T) {
	export := sampleExport()

	require.Len(t, export.Rows, 2)
	assert.True(t, decimal.RequireFromString("9").Equal(export.Total))
	assert.Equal(t, "Bandage roll", export.Rows[0].Item)
	assert.Equal(t, "retired-item", export.Rows[1].Item, "deleted items fall back to their id")
	assert.Equal(t, "internal", export.Rows[1].Class)
}

func TestPrepareLedgerData(t *testing.T) {
	values := prepareLedgerData(sampleExport())

	require.Len(t, values, 5)
	assert.Equal(t, ledgerHeader, values[0])
	assert.Equal(t, []any{"2024-03-01 10:30", "2024-03-01 09:30", "Bandage roll", "Clinic B", "external", 2, "7.00"}, values[1])
	assert.Empty(t, values[3])
	assert.Equal(t, []any{"Total", "", "", "", "", "", "9.00"}, values[4])
}

func TestPrepareLedgerData_Empty(t *testing.T) {
	values := prepareLedgerData(NewLedgerExport("empty", nil))

	require.Len(t, values, 3)
	assert.Equal(t, "0.00", values[2][6])
}

func TestWriter_WriteLedger(t *testing.T) {
	api := &fakeSheetsAPI{}
	w := newTestWriter(t, api)

	id, err := w.WriteLedger(context.Background(), sampleExport())
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	assert.Len(t, api.callsMatching(http.MethodPost, ":clear"), 1)

	updates := api.callsMatching(http.MethodPut, "/values/")
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].path, "Ledger!A1")

	var body struct {
		Values [][]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(updates[0].body), &body))
	require.Len(t, body.Values, 5)
	assert.Equal(t, "Total", body.Values[4][0])
	assert.Equal(t, "9.00", body.Values[4][6])

	formatting := api.callsMatching(http.MethodPost, ":batchUpdate")
	require.Len(t, formatting, 1)
	assert.Contains(t, formatting[0].body, `"sheetId":42`)
}

func TestWriter_ClientErrorIsNotRetried(t *testing.T) {
	api := &fakeSheetsAPI{updateStatus: http.StatusBadRequest}
	w := newTestWriter(t, api)

	_, err := w.WriteLedger(context.Background(), sampleExport())
	require.Error(t, err)
	assert.Len(t, api.callsMatching(http.MethodPut, "/values/"), 1)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("network down")
	assert.Equal(t, plain, classify(plain))

	limited := classify(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.True(t, errors.Is(limited, common.ErrRateLimit))
	assert.True(t, common.IsRetryable(limited))

	assert.True(t, common.IsRetryable(classify(&googleapi.Error{Code: http.StatusServiceUnavailable})))
	assert.False(t, common.IsRetryable(classify(&googleapi.Error{Code: http.StatusForbidden})))
}

func TestCurrencyPattern(t *testing.T) {
	assert.Equal(t, "$#,##0.00", currencyPattern(""))
	assert.Equal(t, "€#,##0.00", currencyPattern("EUR"))
	assert.Equal(t, `#,##0.00 "CHF"`, currencyPattern("CHF"))
}
