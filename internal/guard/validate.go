package guard

import (
	"bytes"
	"encoding/json"
)

// verifyPayload re-validates a response body against the guard's tenant.
// Objects carrying a tenantId field must match; arrays are checked element by
// element. Payloads without a tenantId field pass through: not every resource
// is tenant-scoped.
func verifyPayload(tenantID, url string, payload []byte) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '{':
		return verifyObject(tenantID, url, trimmed, -1)
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil
		}
		for i, element := range elements {
			element = bytes.TrimSpace(element)
			if len(element) == 0 || element[0] != '{' {
				continue
			}
			if err := verifyObject(tenantID, url, element, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyObject(tenantID, url string, object []byte, index int) error {
	var fields struct {
		TenantID *string `json:"tenantId"`
	}
	if err := json.Unmarshal(object, &fields); err != nil {
		return nil
	}
	if fields.TenantID == nil {
		return nil
	}
	if *fields.TenantID != tenantID {
		return &CrossTenantDataError{URL: url, Element: index}
	}
	return nil
}
