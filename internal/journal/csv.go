package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header of a journal export.
const Header = "document_number,date,transaction_id,status,line_no,account_code,description,debit,credit"

const (
	numFields    = 9
	colDocNumber = 0
	colDate      = 1
	colTxnID     = 2
	colStatus    = 3
	colLineNo    = 4
	colAccount   = 5
	colDesc      = 6
	colDebit     = 7
	colCredit    = 8
)

// ManualHeader is the CSV header of a manual-entry line file.
const ManualHeader = "account_code,debit,credit,description"

// WriteEntries writes the lines of txns as a journal export (including header).
func WriteEntries(w io.Writer, txns []model.Transaction, places int32) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, txn := range txns {
		for _, l := range txn.Lines {
			if err := cw.Write(MarshalEntry(txn, l, places)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts a journal line to a CSV row ([]string).
func MarshalEntry(txn model.Transaction, l model.JournalEntry, places int32) []string {
	row := make([]string, numFields)
	row[colDocNumber] = txn.DocumentNumber
	row[colDate] = l.Date.Format(model.DateFormat)
	row[colTxnID] = txn.ID
	row[colStatus] = string(txn.Status)
	row[colLineNo] = strconv.Itoa(l.LineNo)
	row[colAccount] = l.AccountCode
	row[colDesc] = l.Description

	if amt := l.Amount(); !amt.IsZero() {
		col := colCredit
		if l.Side() == model.SideDebit {
			col = colDebit
		}
		row[col] = amt.StringFixed(places)
	}
	return row
}

// ReadManualLines reads explicit lines for PostManual.
func ReadManualLines(r io.Reader) ([]ManualLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading lines CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var lines []ManualLine
	for i, rec := range records[1:] {
		l, err := unmarshalManualLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func unmarshalManualLine(record []string) (ManualLine, error) {
	l := ManualLine{AccountCode: strings.TrimSpace(record[0]), Description: record[3]}

	var err error
	if s := strings.TrimSpace(record[1]); s != "" {
		l.Debit, err = decimal.NewFromString(s)
		if err != nil {
			return ManualLine{}, fmt.Errorf("parsing debit %q: %w", s, err)
		}
	}
	if s := strings.TrimSpace(record[2]); s != "" {
		l.Credit, err = decimal.NewFromString(s)
		if err != nil {
			return ManualLine{}, fmt.Errorf("parsing credit %q: %w", s, err)
		}
	}
	return l, nil
}
