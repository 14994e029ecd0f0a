package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/gateway"
	"github.com/lucidcount/dashboard/internal/company/wizard"
	"go.uber.org/zap"
)

const maxJSONBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldRequest sets one named field.
type fieldRequest struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

type phonesRequest struct {
	Value string `json:"value"`
}

type selectRequest struct {
	TaxID string `json:"cnpj" validate:"required"`
}

type sessionResponse struct {
	ID      uuid.UUID   `json:"id"`
	Session wizard.View `json:"cadastro"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string       `json:"erro"`
	Message string       `json:"mensagem,omitempty"`
	Field   string       `json:"campo,omitempty"`
	Partial bool         `json:"parcial,omitempty"`
	Session *wizard.View `json:"cadastro,omitempty"`
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %v", e.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid session id", e.ErrInvalidInput)
	}
	return id, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", e.ErrInvalidInput, name)
	}
	return v, nil
}

func documentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid document id", e.ErrInvalidInput)
	}
	return id, nil
}

// kpiQuery reads cnpj, regime, data_inicio and data_fim (YYYY-MM-DD).
func kpiQuery(r *http.Request) (gateway.KpiQuery, error) {
	params := r.URL.Query()
	q := gateway.KpiQuery{TaxID: params.Get("cnpj"), Regime: params.Get("regime")}
	for name, dst := range map[string]*time.Time{"data_inicio": &q.Start, "data_fim": &q.End} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be YYYY-MM-DD", e.ErrInvalidInput, name)
		}
		*dst = t
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// mapServiceError maps domain and backend errors to HTTP status codes.
func mapServiceError(err error) int {
	if gwErr, ok := e.As(err); ok {
		switch gwErr.Kind {
		case e.KindClientValidation, e.KindValidation:
			return http.StatusUnprocessableEntity
		case e.KindNetwork, e.KindPartialSubmission:
			return http.StatusBadGateway
		}
	}
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrUnknownField),
		errors.Is(err, e.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrInvalidTransition),
		errors.Is(err, e.ErrBusy),
		errors.Is(err, e.ErrLastListItem),
		errors.Is(err, e.ErrCompanyLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. view, when set, is the
// session state after the failure, whose message is preferred.
func (h *CompanyHandler) writeError(w http.ResponseWriter, r *http.Request, err error, view *wizard.View) {
	status := mapServiceError(err)
	body := errorResponse{Error: err.Error(), Session: view}
	if gwErr, ok := e.As(err); ok {
		body.Error = gwErr.Kind.String()
		body.Field = gwErr.Field
		body.Message = gwErr.Message
		body.Partial = gwErr.Kind == e.KindPartialSubmission
	}
	if view != nil && view.Message != "" {
		body.Message = view.Message
	}
	if view != nil && view.Failure != nil && body.Field == "" {
		body.Field = view.Failure.Field
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Internal server error", zap.Error(err), zap.String("path", r.URL.Path))
		body = errorResponse{Error: "internal server error"}
	}
	writeJSON(w, status, body)
}
