package model

// Display labels live apart from the types so the types stay plain data.
var labels = map[string]map[string]string{
	"en": {
		string(AccountTypeAsset):         "Asset",
		string(AccountTypeLiability):     "Liability",
		string(AccountTypeEquity):        "Equity",
		string(AccountTypeRevenue):       "Revenue",
		string(AccountTypeExpense):       "Expense",
		string(SideDebit):                "Debit",
		string(SideCredit):               "Credit",
		string(TransactionDraft):         "Draft",
		string(TransactionPosted):        "Posted",
		string(TransactionVoid):          "Void",
		string(MatchUnmatched):           "Unmatched",
		string(MatchMatched):             "Matched",
		string(MatchBankOnly):            "Bank only",
		string(MatchBookOnly):            "Book only",
		string(MatchExact):               "Exact",
		string(MatchFuzzyDate):           "Date tolerance",
		string(MatchKeyword):             "Keyword",
		string(MatchManual):              "Manual",
		string(ReconciliationInProgress): "In progress",
		string(ReconciliationCompleted):  "Completed",
	},
	"id": {
		string(AccountTypeAsset):         "Aset",
		string(AccountTypeLiability):     "Kewajiban",
		string(AccountTypeEquity):        "Ekuitas",
		string(AccountTypeRevenue):       "Pendapatan",
		string(AccountTypeExpense):       "Beban",
		string(SideDebit):                "Debit",
		string(SideCredit):               "Kredit",
		string(TransactionDraft):         "Draf",
		string(TransactionPosted):        "Diposting",
		string(TransactionVoid):          "Dibatalkan",
		string(MatchUnmatched):           "Belum cocok",
		string(MatchMatched):             "Cocok",
		string(MatchBankOnly):            "Hanya di bank",
		string(MatchBookOnly):            "Hanya di buku",
		string(MatchExact):               "Tepat",
		string(MatchFuzzyDate):           "Toleransi tanggal",
		string(MatchKeyword):             "Kata kunci",
		string(MatchManual):              "Manual",
		string(ReconciliationInProgress): "Sedang berjalan",
		string(ReconciliationCompleted):  "Selesai",
	},
}

// Label returns the display text for an enum value in locale, falling back
// to English and then to the raw value. DRAFT is shared by transactions and
// reconciliations and carries one label.
func Label[T ~string](locale string, v T) string {
	if l, ok := labels[locale][string(v)]; ok {
		return l
	}
	if l, ok := labels["en"][string(v)]; ok {
		return l
	}
	return string(v)
}
