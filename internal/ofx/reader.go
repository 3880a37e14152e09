package ofx

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// StatementLine is one transaction read back from a statement.
type StatementLine struct {
	Posted    time.Time
	Amount    decimal.Decimal
	FiTID     string
	Name      string
	Memo      string
	AccountID string
}

// preprocess fixes formatting issues that other tools introduce when they
// rewrite exported statements.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ReadStatement parses the bank statements in an OFX document, for checking
// an export against the ledger.
func ReadStatement(r io.Reader) ([]StatementLine, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var lines []StatementLine
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		for _, txn := range stmt.BankTranList.Transactions {
			amt, err := decimal.NewFromString(txn.TrnAmt.FloatString(2))
			if err != nil {
				return nil, fmt.Errorf("invalid amount in %s: %w", txn.FiTID, err)
			}
			lines = append(lines, StatementLine{
				Posted:    txn.DtPosted.Time,
				Amount:    amt,
				FiTID:     string(txn.FiTID),
				Name:      string(txn.Name),
				Memo:      string(txn.Memo),
				AccountID: string(stmt.BankAcctFrom.AcctID),
			})
		}
	}
	return lines, nil
}
