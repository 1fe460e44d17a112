package smartlead

import (
	"errors"
	"fmt"
)

// Sentinel errors for the client's failure taxonomy.
var (
	// ErrInvalidAPIKey is returned by NewClient when the credential is
	// empty after trimming. No network call is attempted.
	ErrInvalidAPIKey = errors.New("smartlead: api key is required")

	// ErrMalformedResponse marks a response body or record that could not
	// be decoded into the expected shape. Callers treat the offending
	// unit as droppable, not fatal.
	ErrMalformedResponse = errors.New("smartlead: malformed response")
)

// RequestError is a fatal transport failure after retry exhaustion. It
// carries the underlying cause for errors.Is/As inspection.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("smartlead: %s %s failed: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Campaign is a Smartlead campaign as returned by GET /campaigns.
type Campaign struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	ClientID int64  `json:"client_id,omitempty"`
}

// EmailAccount is a sender account record. One account may expose several
// distinct addresses across its email-bearing fields; all of them resolve
// to the same account id.
type EmailAccount struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FromEmail string `json:"from_email,omitempty"`
	Email     string `json:"email,omitempty"`
}

// EmailFields returns the account's candidate email fields in the fixed
// order the reconciliation engine checks them.
func (a EmailAccount) EmailFields() []string {
	return []string{a.Username, a.FromEmail, a.Email}
}

// AddResult is the outcome of an add-accounts-to-campaign call.
type AddResult struct {
	OK         bool   `json:"ok"`
	Success    bool   `json:"success"`
	AddedCount int    `json:"added_count"`
	Message    string `json:"message,omitempty"`
}

// Accepted reports whether the remote acknowledged the batch. The API is
// inconsistent about which flag it sets, so either counts.
func (r AddResult) Accepted() bool { return r.OK || r.Success }
