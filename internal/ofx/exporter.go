// Package ofx writes ledger history as an OFX bank statement, one debit per
// transaction record, so accounting tools can import it.
package ofx

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

// BankID identifies qflow as the statement's institution.
const BankID = "QFLOW"

// OFX limits NAME to 32 characters.
const maxNameLength = 32

// StatementOptions describes the statement envelope.
type StatementOptions struct {
	Start     time.Time
	End       time.Time
	Now       time.Time
	AccountID string
	Currency  string
}

// WriteStatement writes rows as a single OFX 2.0.3 bank statement for opts.AccountID.
func WriteStatement(w io.Writer, rows []query.HistoryRow, opts StatementOptions) error {
	if strings.TrimSpace(opts.AccountID) == "" {
		return errors.New("statement account is required")
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	start, end := statementRange(rows, opts)

	cur, err := ofxgo.NewCurrSymbol(opts.Currency)
	if err != nil {
		return fmt.Errorf("invalid currency %q: %w", opts.Currency, err)
	}

	txns := make([]ofxgo.Transaction, 0, len(rows))
	for _, r := range rows {
		if r.AccountID != opts.AccountID {
			return fmt.Errorf("record %s belongs to account %s, not %s", r.ID, r.AccountID, opts.AccountID)
		}
		txn, err := transaction(r)
		if err != nil {
			return err
		}
		txns = append(txns, txn)
	}

	balance, err := amount(query.TotalValue(rows).Neg())
	if err != nil {
		return err
	}

	stmt := &ofxgo.StatementResponse{
		TrnUID: ofxgo.UID(uuid.NewString()),
		Status: ofxgo.Status{Code: 0, Severity: "INFO"},
		CurDef: *cur,
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(BankID),
			AcctID:   ofxgo.String(opts.AccountID),
			AcctType: ofxgo.AcctTypeChecking,
		},
		BankTranList: &ofxgo.TransactionList{
			DtStart:      ofxgo.Date{Time: start},
			DtEnd:        ofxgo.Date{Time: end},
			Transactions: txns,
		},
		BalAmt: balance,
		DtAsOf: ofxgo.Date{Time: opts.Now.UTC()},
	}

	resp := ofxgo.Response{
		Version: ofxgo.OfxVersion203,
		Signon: ofxgo.SignonResponse{
			Status:   ofxgo.Status{Code: 0, Severity: "INFO"},
			DtServer: ofxgo.Date{Time: opts.Now.UTC()},
			Language: "ENG",
		},
		Bank: []ofxgo.Message{stmt},
	}

	buf, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal statement: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write statement: %w", err)
	}
	return nil
}

func transaction(r query.HistoryRow) (ofxgo.Transaction, error) {
	amt, err := amount(r.Value.Neg())
	if err != nil {
		return ofxgo.Transaction{}, err
	}

	name := r.ItemName
	if name == "" {
		name = r.CatalogItemID
	}

	return ofxgo.Transaction{
		TrnType:  ofxgo.TrnTypeDebit,
		DtPosted: ofxgo.Date{Time: r.CompletedAt.UTC()},
		DtUser:   &ofxgo.Date{Time: r.RequestedAt.UTC()},
		TrnAmt:   amt,
		FiTID:    ofxgo.String(r.ID),
		Name:     ofxgo.String(truncate(name, maxNameLength)),
		Memo:     ofxgo.String(fmt.Sprintf("%d x %s (%s)", r.Quantity, name, r.AccountClass)),
	}, nil
}

func amount(d decimal.Decimal) (ofxgo.Amount, error) {
	var a ofxgo.Amount
	if _, ok := a.SetString(d.String()); !ok {
		return a, fmt.Errorf("invalid amount %s", d)
	}
	return a, nil
}

// statementRange defaults to the span of completion times when unset.
func statementRange(rows []query.HistoryRow, opts StatementOptions) (time.Time, time.Time) {
	start, end := opts.Start, opts.End
	for _, r := range rows {
		if opts.Start.IsZero() && (start.IsZero() || r.CompletedAt.Before(start)) {
			start = r.CompletedAt
		}
		if opts.End.IsZero() && r.CompletedAt.After(end) {
			end = r.CompletedAt
		}
	}
	if start.IsZero() {
		start = opts.Now
	}
	if end.IsZero() {
		end = opts.Now
	}
	return start.UTC(), end.UTC()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
