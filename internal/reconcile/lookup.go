package reconcile

import (
	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

// Lookup maps a normalized email to the id of the account exposing it.
type Lookup map[string]int64

// BuildLookup constructs a normalized-email → account-id lookup from raw
// account records. Each record's candidate email fields (username,
// from_email, email, in that order) are normalized and unioned; every
// valid email maps to the record's id. Records without an id are skipped
// and logged, never fatal.
//
// When two accounts expose the same normalized email the later record
// wins. The original tool behaved the same way; callers that care about
// the data-quality gap can detect it with CountDuplicateEmails.
func BuildLookup(accounts []smartlead.EmailAccount) Lookup {
	lookup := make(Lookup, len(accounts))

	for _, account := range accounts {
		if account.ID <= 0 {
			logger.Warn("skipping account without id", "account", account)
			continue
		}

		emails := make(map[string]struct{}, 3)
		for _, field := range account.EmailFields() {
			if email, ok := NormalizeEmail(field); ok {
				emails[email] = struct{}{}
			}
		}

		for email := range emails {
			lookup[email] = account.ID
		}
	}

	return lookup
}

// CountDuplicateEmails reports how many normalized emails are exposed by
// more than one account id. Those collisions resolve last-write-wins in
// BuildLookup and are worth surfacing to the operator.
func CountDuplicateEmails(accounts []smartlead.EmailAccount) int {
	owners := make(map[string]int64)
	collided := make(map[string]struct{})

	for _, account := range accounts {
		if account.ID <= 0 {
			continue
		}
		for _, field := range account.EmailFields() {
			email, ok := NormalizeEmail(field)
			if !ok {
				continue
			}
			if prev, seen := owners[email]; seen && prev != account.ID {
				collided[email] = struct{}{}
			}
			owners[email] = account.ID
		}
	}
	return len(collided)
}

// MapEmailsToIDs maps requested emails to account ids using the given
// inventory. Each requested email is normalized again defensively before
// lookup; unmatched emails are simply omitted, and the caller derives the
// not-found set as the complement.
func MapEmailsToIDs(emails []string, accounts []smartlead.EmailAccount) Lookup {
	lookup := BuildLookup(accounts)
	mapped := make(Lookup, len(emails))

	for _, raw := range emails {
		email, ok := NormalizeEmail(raw)
		if !ok {
			continue
		}
		if id, found := lookup[email]; found {
			mapped[email] = id
		} else {
			logger.Warn("email account not found in inventory", "email", email)
		}
	}

	logger.Info("mapped emails to account ids", "mapped", len(mapped), "requested", len(emails))
	return mapped
}

// NotFound returns the requested emails absent from the mapped lookup,
// preserving the request order.
func NotFound(requested []string, mapped Lookup) []string {
	var missing []string
	for _, raw := range requested {
		email, ok := NormalizeEmail(raw)
		if !ok {
			continue
		}
		if _, found := mapped[email]; !found {
			missing = append(missing, email)
		}
	}
	return missing
}
