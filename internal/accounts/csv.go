package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/ledger/internal/model"
)

const (
	numFields     = 7
	colCode       = 0
	colName       = 1
	colType       = 2
	colNormalSide = 3
	colHeader     = 4
	colActive     = 5
	colDesc       = 6
)

var csvHeader = []string{"code", "name", "type", "normal_side", "header", "active", "description"}

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colNormalSide] = string(acct.NormalSide)
	row[colHeader] = strconv.FormatBool(acct.Header)
	row[colActive] = strconv.FormatBool(acct.Active)
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account. Blank normal_side
// defaults to the type's side and blank active defaults to true.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	acct := model.Account{
		Code:        record[colCode],
		Name:        record[colName],
		Type:        model.AccountType(record[colType]),
		NormalSide:  model.Side(record[colNormalSide]),
		Active:      true,
		Description: record[colDesc],
	}
	if acct.NormalSide == "" {
		acct.NormalSide = acct.Type.NormalSide()
	}

	var err error
	if record[colHeader] != "" {
		if acct.Header, err = strconv.ParseBool(record[colHeader]); err != nil {
			return model.Account{}, fmt.Errorf("parsing header %q: %w", record[colHeader], err)
		}
	}
	if record[colActive] != "" {
		if acct.Active, err = strconv.ParseBool(record[colActive]); err != nil {
			return model.Account{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
		}
	}
	return acct, nil
}
