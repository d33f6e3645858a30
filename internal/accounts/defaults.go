package accounts

import "github.com/cleared-dev/ledger/internal/model"

// Codes of default-chart accounts referenced by the default templates.
const (
	CodeCash             = "1.1.01"
	CodeBank             = "1.1.02"
	CodeReceivables      = "1.1.03"
	CodeVATInput         = "1.1.04"
	CodePrepaidIncomeTax = "1.1.05"
	CodePayables         = "2.1.01"
	CodeVATPayable       = "2.1.02"
	CodeOwnerCapital     = "3.1"
	CodeSalesRevenue     = "4.1"
	CodeServiceRevenue   = "4.2"
	CodeOfficeSupplies   = "5.2"
	CodeBankFees         = "5.3"
)

// DefaultChart returns the default chart of accounts for a business type.
func DefaultChart(businessType string) []model.Account {
	switch businessType {
	case "trading":
		return tradingChart()
	default:
		return tradingChart()
	}
}

func header(code, name string, t model.AccountType) model.Account {
	return model.Account{Code: code, Name: name, Type: t, NormalSide: t.NormalSide(), Header: true, Active: true}
}

func leaf(code, name string, t model.AccountType, desc string) model.Account {
	return model.Account{Code: code, Name: name, Type: t, NormalSide: t.NormalSide(), Active: true, Description: desc}
}

func tradingChart() []model.Account {
	return []model.Account{
		header("1", "Assets", model.AccountTypeAsset),
		header("1.1", "Current Assets", model.AccountTypeAsset),
		leaf(CodeCash, "Cash on Hand", model.AccountTypeAsset, "Petty cash and till"),
		leaf(CodeBank, "Bank", model.AccountTypeAsset, "Primary operating bank account"),
		leaf(CodeReceivables, "Accounts Receivable", model.AccountTypeAsset, ""),
		leaf(CodeVATInput, "VAT Input", model.AccountTypeAsset, "VAT paid on purchases"),
		leaf(CodePrepaidIncomeTax, "Prepaid Income Tax", model.AccountTypeAsset, "Tax withheld by customers"),
		header("2", "Liabilities", model.AccountTypeLiability),
		header("2.1", "Current Liabilities", model.AccountTypeLiability),
		leaf(CodePayables, "Accounts Payable", model.AccountTypeLiability, ""),
		leaf(CodeVATPayable, "VAT Payable", model.AccountTypeLiability, "VAT collected on sales"),
		header("3", "Equity", model.AccountTypeEquity),
		leaf(CodeOwnerCapital, "Owner's Capital", model.AccountTypeEquity, ""),
		leaf("3.2", "Retained Earnings", model.AccountTypeEquity, ""),
		header("4", "Revenue", model.AccountTypeRevenue),
		leaf(CodeSalesRevenue, "Sales Revenue", model.AccountTypeRevenue, ""),
		leaf(CodeServiceRevenue, "Service Revenue", model.AccountTypeRevenue, ""),
		header("5", "Expenses", model.AccountTypeExpense),
		leaf("5.1", "Cost of Goods Sold", model.AccountTypeExpense, ""),
		leaf(CodeOfficeSupplies, "Office Supplies", model.AccountTypeExpense, ""),
		leaf(CodeBankFees, "Bank Fees", model.AccountTypeExpense, "Charges deducted by the bank"),
		leaf("5.4", "Rent", model.AccountTypeExpense, ""),
		leaf("5.5", "Utilities", model.AccountTypeExpense, ""),
	}
}
