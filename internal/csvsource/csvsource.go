// Package csvsource extracts recipient emails from operator-uploaded CSV
// files. The only schema requirement is an email column; everything else
// is ignored.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/reconcile"
)

// ErrMissingEmailColumn is returned when no recognized email column is
// present. Fatal for the file; no partial extraction is attempted.
var ErrMissingEmailColumn = errors.New("csvsource: no email column found")

// emailColumnNames are the accepted header spellings, matched
// case-insensitively in this order.
var emailColumnNames = []string{"email", "email_address", "emailaddress"}

// ExtractEmails reads UTF-8 CSV content and returns the ordered, unique,
// normalized email list from its email column. Invalid addresses are
// dropped with a warning; a missing email column is fatal.
func ExtractEmails(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingEmailColumn
	}
	if err != nil {
		return nil, fmt.Errorf("csvsource: read header: %w", err)
	}

	col, err := findEmailColumn(header)
	if err != nil {
		return nil, err
	}

	var raw []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvsource: read row: %w", err)
		}
		if col >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[col]); value != "" {
			raw = append(raw, value)
		}
	}

	emails := reconcile.ExtractUnique(raw)
	if dropped := len(raw) - len(emails); dropped > 0 {
		logger.Warn("dropped invalid or duplicate email rows", "dropped", dropped, "kept", len(emails))
	}
	return emails, nil
}

// findEmailColumn locates the email column index; the first header cell
// matching any accepted spelling wins.
func findEmailColumn(header []string) (int, error) {
	for _, name := range emailColumnNames {
		for i, cell := range header {
			if strings.EqualFold(strings.TrimSpace(cell), name) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: expected one of %s", ErrMissingEmailColumn, strings.Join(emailColumnNames, ", "))
}
