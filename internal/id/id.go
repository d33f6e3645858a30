package id

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity id prefixes.
const (
	PrefixTransaction    = "txn"
	PrefixTemplate       = "tpl"
	PrefixStatement      = "stm"
	PrefixStatementItem  = "sti"
	PrefixReconciliation = "rec"
	PrefixReconItem      = "rci"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a time-ordered id like "txn_01JB3Z...".
func New(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// FormatDocumentNumber returns a document number like "CS-2025-000042".
func FormatDocumentNumber(docType string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", docType, year, seq)
}

// ParseDocumentNumber parses "CS-2025-000042" into type, year, sequence.
// Document types may themselves contain dashes.
func ParseDocumentNumber(number string) (docType string, year int, seq int64, err error) {
	last := strings.LastIndex(number, "-")
	if last <= 0 {
		return "", 0, 0, fmt.Errorf("invalid document number format: %q", number)
	}
	mid := strings.LastIndex(number[:last], "-")
	if mid <= 0 {
		return "", 0, 0, fmt.Errorf("invalid document number format: %q", number)
	}

	year, err = strconv.Atoi(number[mid+1 : last])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid year in document number %q: %w", number, err)
	}

	seq, err = strconv.ParseInt(number[last+1:], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid sequence in document number %q: %w", number, err)
	}

	return number[:mid], year, seq, nil
}
