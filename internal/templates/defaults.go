package templates

import (
	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
)

// Ids of the default templates.
const (
	CashSale           = "cash-sale"
	CashPurchase       = "cash-purchase"
	BankFee            = "bank-fee"
	BankDeposit        = "bank-deposit"
	ServiceWithholding = "service-withholding"
)

func line(order int, account string, side model.Side, f string) model.TemplateLine {
	return model.TemplateLine{AccountCode: account, Side: side, Formula: f, Order: order}
}

// Defaults returns the templates installed with the default chart.
//
// Cash Sale splits the amount with unrounded percentages, so it only
// balances for whole-unit amounts: a cent amount such as 0.50 rounds the
// credits apart from the debit and is rejected at posting time. Cash
// Purchase derives its net line from the rounded tax and balances for any
// amount.
func Defaults() []model.JournalTemplate {
	return []model.JournalTemplate{
		{
			ID: CashSale, Name: "Cash Sale", DocumentType: "CS", Active: true,
			Description: "Cash sale including 11% VAT",
			Lines: []model.TemplateLine{
				line(1, accounts.CodeCash, model.SideDebit, "amount"),
				line(2, accounts.CodeSalesRevenue, model.SideCredit, "amount * 0.89"),
				line(3, accounts.CodeVATPayable, model.SideCredit, "amount * 0.11"),
			},
		},
		{
			ID: CashPurchase, Name: "Cash Purchase", DocumentType: "CP", Active: true,
			Description: "Office supplies paid in cash, VAT-inclusive price",
			Lines: []model.TemplateLine{
				line(1, accounts.CodeOfficeSupplies, model.SideDebit, "amount - round(amount / 1.11 * 0.11, 2)"),
				line(2, accounts.CodeVATInput, model.SideDebit, "round(amount / 1.11 * 0.11, 2)"),
				line(3, accounts.CodeCash, model.SideCredit, "amount"),
			},
		},
		{
			ID: BankFee, Name: "Bank Fee", DocumentType: "BF", Active: true,
			Description: "Charge deducted by the bank",
			Lines: []model.TemplateLine{
				line(1, accounts.CodeBankFees, model.SideDebit, "amount"),
				line(2, accounts.CodeBank, model.SideCredit, "amount"),
			},
		},
		{
			ID: BankDeposit, Name: "Bank Deposit", DocumentType: "BD", Active: true,
			Description: "Service income received by transfer",
			Lines: []model.TemplateLine{
				line(1, accounts.CodeBank, model.SideDebit, "amount"),
				line(2, accounts.CodeServiceRevenue, model.SideCredit, "amount"),
			},
		},
		{
			ID: ServiceWithholding, Name: "Service Income with Withholding", DocumentType: "SV", Active: true,
			Description: "Customers withhold 2% on invoices above 5,000,000",
			Lines: []model.TemplateLine{
				line(1, accounts.CodeBank, model.SideDebit, "amount > 5_000_000 ? amount - round(amount * 0.02, 2) : amount"),
				line(2, accounts.CodePrepaidIncomeTax, model.SideDebit, "amount > 5_000_000 ? round(amount * 0.02, 2) : 0"),
				line(3, accounts.CodeServiceRevenue, model.SideCredit, "amount"),
			},
		},
	}
}
