package payments

import "strings"

const successResultCode = "SUCCESS"

// statusTable is the closed allow-list mapping raw provider statuses onto the
// canonical enum. Values the provider may introduce later fall through to
// StatusUnknown instead of crashing the pipeline.
var statusTable = map[string]Status{
	"COMPLETED":  StatusCompleted,
	"CREATED":    StatusPending,
	"AUTHORIZED": StatusPending,
	"FAILED":     StatusFailed,
	"CANCELED":   StatusFailed,
	"EXPIRED":    StatusFailed,
}

// Normalize maps a raw gateway response body onto the canonical payment status.
// The second return value is the raw provider string that drove the decision,
// kept for diagnostics and for callers that surface it verbatim.
//
// Normalize is pure and total: it never returns an error and never panics,
// whatever the body contains.
func Normalize(body RawBody) (Status, string) {
	code := strings.ToUpper(strings.TrimSpace(body.ResultInfo.Code))
	if code != "" && code != successResultCode {
		return StatusFailed, code
	}

	if len(body.Data) == 0 {
		return StatusUnknown, ""
	}

	raw := strings.ToUpper(strings.TrimSpace(body.Data[0].Status))
	if raw == "" {
		return StatusUnknown, ""
	}
	if status, ok := statusTable[raw]; ok {
		return status, raw
	}
	return StatusUnknown, raw
}
