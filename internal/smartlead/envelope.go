package smartlead

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The API sometimes returns a bare JSON array and sometimes an envelope
// object whose data field holds the array. unwrapList normalizes both into
// a slice of raw records so the ambiguity never leaks past this package.
//
// Coercion rules for the unwrapped value:
//   - array          -> as-is
//   - null, {}, ""   -> empty list
//   - any other value -> single-element list
func unwrapList(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data, ok := envelope["data"]; ok {
			if err := json.Unmarshal(data, &items); err == nil {
				return items, nil
			}
			return coerceScalar(data), nil
		}
		if len(envelope) == 0 {
			return nil, nil
		}
		// Envelope without a data field: treat the object itself as a
		// single record.
		return []json.RawMessage{json.RawMessage(body)}, nil
	}

	// Not an array and not an object; accept bare scalars.
	var probe interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return coerceScalar(body), nil
}

// coerceScalar turns a non-list value into a zero- or one-element list.
// Empty-ish values (null, empty string, empty object) become empty.
func coerceScalar(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0,
		bytes.Equal(trimmed, []byte("null")),
		bytes.Equal(trimmed, []byte(`""`)),
		bytes.Equal(trimmed, []byte("{}")):
		return nil
	}
	return []json.RawMessage{raw}
}

// decodeAccounts decodes raw records into EmailAccount values, dropping
// anything without a positive id. Dropped records are reported back so the
// caller can log them; a malformed record is never fatal.
func decodeAccounts(items []json.RawMessage) (accounts []EmailAccount, dropped int) {
	for _, item := range items {
		var account EmailAccount
		if err := json.Unmarshal(item, &account); err != nil || account.ID <= 0 {
			dropped++
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, dropped
}
