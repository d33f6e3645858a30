package model

import "time"

// TemplateLine is one (account, side, formula) triple of a journal template.
type TemplateLine struct {
	AccountCode string
	Side        Side
	Formula     string
	Order       int
	Description string
}

// JournalTemplate expands a single amount into balanced ledger lines.
// Edits produce a new Version; posted transactions keep the lines they were
// posted with.
type JournalTemplate struct {
	ID           string
	Name         string
	Description  string
	DocumentType string
	Active       bool
	Version      int
	Lines        []TemplateLine
	UpdatedAt    time.Time
}
