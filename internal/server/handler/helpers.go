package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// errorStatus maps a domain failure to an HTTP status and a stable code.
// Unknown errors map to 500.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrUnknownAgent, http.StatusNotFound, "unknown_agent"},
	{domain.ErrPositionNotFound, http.StatusNotFound, "position_not_found"},
	{domain.ErrDuplicateRequest, http.StatusConflict, "duplicate_request"},
	{domain.ErrRiskRejected, http.StatusForbidden, "risk_rejected"},
	{domain.ErrNoLiquidity, http.StatusUnprocessableEntity, "no_liquidity"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domain.ErrQuoteFailed, http.StatusBadGateway, "quote_failed"},
	{domain.ErrSubmissionFailed, http.StatusBadGateway, "submission_failed"},
	{domain.ErrSigningFailed, http.StatusInternalServerError, "signing_failed"},
	{domain.ErrConfirmationTimeout, http.StatusGatewayTimeout, "confirmation_timeout"},
}

// writeServiceError maps err onto the status table and writes it. It
// returns the status so callers can decide whether to log.
func writeServiceError(w http.ResponseWriter, err error) int {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		resp.Attempts = execErr.Attempts
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			status, resp.Code = e.status, e.code
			break
		}
	}
	if status == http.StatusInternalServerError && resp.Code == "" {
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
	return status
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0. since and until take RFC 3339
// timestamps; malformed values are ignored.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
	if t, ok := parseTime(q.Get("since")); ok {
		opts.Since = &t
	}
	if t, ok := parseTime(q.Get("until")); ok {
		opts.Until = &t
	}
	return opts
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
