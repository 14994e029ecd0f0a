package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	e "github.com/lucidcount/dashboard/internal/company/errors"
)

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []any `json:"loc"`
	Msg any   `json:"msg"`
}

// decodeError turns an error response into the tagged error value. The backend
// reports "detail" either as a string or as a list of {loc, msg} where loc[1]
// names the field.
func decodeError(resp *http.Response, structured bool) *e.Error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return e.NewNetworkError(resp.StatusCode, fmt.Errorf("read error body: %w", err))
	}

	field, message, ok := parseDetail(raw)
	if !ok {
		return e.NewNetworkError(resp.StatusCode, fmt.Errorf("backend status %d", resp.StatusCode))
	}
	if !structured {
		netErr := e.NewNetworkError(resp.StatusCode, fmt.Errorf("backend status %d", resp.StatusCode))
		netErr.Message = message
		return netErr
	}
	return e.NewValidationError(resp.StatusCode, field, message)
}

// parseDetail extracts the first field error of a detail body. ok is false
// when there is no detail or it has an unexpected shape.
func parseDetail(raw []byte) (field, message string, ok bool) {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return "", "", false
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return "", text, true
	}

	var list []fieldError
	if err := json.Unmarshal(body.Detail, &list); err != nil || len(list) == 0 {
		return "", "", false
	}
	first := list[0]
	if len(first.Loc) > 1 {
		field = fmt.Sprint(first.Loc[1])
	}
	message, _ = first.Msg.(string)
	return field, message, true
}
