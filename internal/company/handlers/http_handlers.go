package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lucidcount/dashboard/internal/company/draft"
	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/gateway"
	"github.com/lucidcount/dashboard/internal/company/models"
	"github.com/lucidcount/dashboard/internal/company/review"
	"github.com/lucidcount/dashboard/internal/company/wizard"
	"go.uber.org/zap"
)

// CompanyController defines the business logic interface
// that the HTTP handlers will invoke.
type CompanyController interface {
	StartSession(ctx context.Context) (uuid.UUID, wizard.View, error)
	View(ctx context.Context, id uuid.UUID) (wizard.View, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*wizard.Wizard) error) (*wizard.View, error)
	Review(ctx context.Context, id uuid.UUID) (review.Page, error)
	Confirm(ctx context.Context, id uuid.UUID) (*wizard.View, error)
	Discard(ctx context.Context, id uuid.UUID) error
	Companies(ctx context.Context) ([]models.Company, error)
	SelectCompany(ctx context.Context, taxID string) error
	Kpis(ctx context.Context, q gateway.KpiQuery) (*models.KpiSnapshot, error)
	Documents(ctx context.Context) ([]models.Document, error)
	ProcessDocument(ctx context.Context, documentID int64) (*models.ProcessingResult, error)
	SaveDocumentData(ctx context.Context, documentID int64, data map[string]any) error
}

const defaultMaxUploadBytes = 32 << 20

// CompanyHandler serves the dashboard JSON API.
type CompanyHandler struct {
	service        CompanyController
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewCompanyHandler constructs a new CompanyHandler. maxUploadBytes bounds a
// single attached file; zero uses the default.
func NewCompanyHandler(service CompanyController, logger *zap.Logger, maxUploadBytes int64) *CompanyHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &CompanyHandler{
		service:        service,
		logger:         logger.Named("http_handler"),
		maxUploadBytes: maxUploadBytes,
	}
}

// MountRoutes registers the API under r.
func (h *CompanyHandler) MountRoutes(r chi.Router) {
	r.Route("/cadastro", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.discardSession)
			r.Patch("/campos", h.setField)
			r.Patch("/endereco", h.setAddressField)
			r.Put("/fones", h.setPhones)
			r.Post("/listas/{list}", h.appendListItem)
			r.Patch("/listas/{list}/{index}", h.updateListItem)
			r.Delete("/listas/{list}/{index}", h.removeListItem)
			r.Put("/documentos/{index}", h.attachFile)
			r.Delete("/documentos/{index}", h.detachFile)
			r.Post("/revisao", h.continueToReview)
			r.Get("/revisao", h.getReview)
			r.Post("/voltar", h.back)
			r.Post("/confirmar", h.confirm)
			r.Post("/regimes", h.reloadCatalog)
		})
	})
	r.Get("/empresas", h.listCompanies)
	r.Put("/empresas/selecionada", h.selectCompany)
	r.Get("/kpis", h.getKpis)
	r.Get("/documentos", h.listDocuments)
	r.Post("/documentos/{id}/processar", h.processDocument)
	r.Put("/documentos/{id}/dados", h.saveDocumentData)
}

func (h *CompanyHandler) startSession(w http.ResponseWriter, r *http.Request) {
	id, view, err := h.service.StartSession(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Session: view})
}

func (h *CompanyHandler) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	view, err := h.service.View(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Session: view})
}

func (h *CompanyHandler) discardSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if err := h.service.Discard(r.Context(), id); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// update runs fn on the session named in the URL and writes the resulting view.
func (h *CompanyHandler) update(w http.ResponseWriter, r *http.Request, fn func(*wizard.Wizard) error) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	view, err := h.service.Update(r.Context(), id, fn)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Session: *view})
}

func (h *CompanyHandler) setField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.SetField(req.Name, req.Value) })
}

func (h *CompanyHandler) setAddressField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.SetAddressField(req.Name, req.Value) })
}

func (h *CompanyHandler) setPhones(w http.ResponseWriter, r *http.Request) {
	var req phonesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.SetPhones(req.Value) })
}

func (h *CompanyHandler) appendListItem(w http.ResponseWriter, r *http.Request) {
	list := draft.List(chi.URLParam(r, "list"))
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.AppendListItem(list) })
}

func (h *CompanyHandler) updateListItem(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	patch := map[string]string{}
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	list := draft.List(chi.URLParam(r, "list"))
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.UpdateListItem(list, index, patch) })
}

func (h *CompanyHandler) removeListItem(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	list := draft.List(chi.URLParam(r, "list"))
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.RemoveListItem(list, index) })
}

// attachFile reads the multipart "file" part into memory and puts it in a slot.
func (h *CompanyHandler) attachFile(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: multipart form: %v", e.ErrInvalidInput, err), nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: file part: %v", e.ErrInvalidInput, err), nil)
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		h.writeError(w, r, fmt.Errorf("%w: file larger than %d bytes", e.ErrInvalidInput, h.maxUploadBytes), nil)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: read file: %v", e.ErrInvalidInput, err), nil)
		return
	}

	attachment := models.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.AttachFile(index, attachment) })
}

func (h *CompanyHandler) detachFile(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.DetachFile(index) })
}

func (h *CompanyHandler) continueToReview(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, (*wizard.Wizard).Continue)
}

func (h *CompanyHandler) back(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, (*wizard.Wizard).Back)
}

// reloadCatalog retries loading the regimes and their required documents.
func (h *CompanyHandler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.update(w, r, func(wz *wizard.Wizard) error { return wz.LoadCatalog(ctx) })
}

func (h *CompanyHandler) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	page, err := h.service.Review(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CompanyHandler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	view, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Session: *view})
}

func (h *CompanyHandler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.Companies(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (h *CompanyHandler) selectCompany(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if err := h.service.SelectCompany(r.Context(), req.TaxID); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) getKpis(w http.ResponseWriter, r *http.Request) {
	q, err := kpiQuery(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	snapshot, err := h.service.Kpis(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *CompanyHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.Documents(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *CompanyHandler) processDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	result, err := h.service.ProcessDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *CompanyHandler) saveDocumentData(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	data := map[string]any{}
	if err := decodeJSON(r, &data); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if err := h.service.SaveDocumentData(r.Context(), id, data); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
