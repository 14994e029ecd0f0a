package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucidcount/dashboard/internal/company/auth"
	"github.com/lucidcount/dashboard/internal/company/controller"
	"github.com/lucidcount/dashboard/internal/company/directory"
	"github.com/lucidcount/dashboard/internal/company/gateway"
	"github.com/lucidcount/dashboard/internal/company/review"
	"github.com/lucidcount/dashboard/internal/company/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

// fakeBackend is a minimal accounting backend.
type fakeBackend struct {
	mu           sync.Mutex
	catalogDown  bool
	createStatus int
	createBody   string
	uploadStatus int
	creates      int
	uploads      []string
	lastAuth     string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAuth = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/upload-options/":
		if b.catalogDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"Simples Nacional":["CNPJ_CARD","CONTRACT"],"Lucro Presumido":["DRE"]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/empresas/":
		_, _ = io.WriteString(w, `[{"id":1,"cnpj":"11.111.111/0001-11","regime_tributario":"Lucro Presumido"}]`)
	case r.Method == http.MethodPost && r.URL.Path == "/empresas/":
		if b.createStatus != 0 {
			w.WriteHeader(b.createStatus)
			_, _ = io.WriteString(w, b.createBody)
			return
		}
		b.creates++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 7, "cnpj": body["cnpj"], "regime_tributario": body["regime_tributario"],
		})
	case r.Method == http.MethodPost && r.URL.Path == "/upload/files/":
		_ = r.ParseMultipartForm(1 << 20)
		docType := r.FormValue("tipo_documento")
		if b.uploadStatus != 0 {
			w.WriteHeader(b.uploadStatus)
			_, _ = io.WriteString(w, `{"detail":"storage offline"}`)
			return
		}
		b.uploads = append(b.uploads, docType)
		_, _ = io.WriteString(w, `[{"id":3,"empresa_id":7,"tipo_documento":"`+docType+`"}]`)
	case r.Method == http.MethodGet && r.URL.Path == "/analytics/kpis":
		_, _ = io.WriteString(w, `{"cnpj_consultado":"`+r.URL.Query().Get("cnpj")+`","ticket_medio":"R$ 10,00"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/documentos/":
		_, _ = io.WriteString(w, `[{"id":3,"empresa_id":7,"tipo_documento":"DRE"}]`)
	case r.Method == http.MethodPost && r.URL.Path == "/documentos/3/processar":
		_, _ = io.WriteString(w, `{"documento_id":3,"tipo_documento":"DRE","dados_extraidos":{"receita":100}}`)
	case r.Method == http.MethodPut && r.URL.Path == "/documentos/3/dados":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func (b *fakeBackend) failCreate(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createStatus = status
	b.createBody = body
}

func (b *fakeBackend) setCatalogDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogDown = down
}

func (b *fakeBackend) failUploads(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadStatus = status
}

func (b *fakeBackend) counts() (creates int, uploads []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, append([]string(nil), b.uploads...)
}

type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
	backend *fakeBackend
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	logger := zaptest.NewLogger(t)

	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend)
	t.Cleanup(backendSrv.Close)

	client := gateway.NewClient(backendSrv.URL, 5*time.Second, logger)
	svc := controller.NewCompanyService(client, directory.New(client, logger), nil, logger)
	handler := NewCompanyHandler(svc, logger, 1<<20)
	api := httptest.NewServer(NewRouter(handler, RouterConfig{JWTSecret: testSecret, RateLimit: 1000}, logger))
	t.Cleanup(api.Close)

	token, err := auth.GenerateToken("ana", testSecret, time.Hour)
	require.NoError(t, err)
	return &apiClient{t: t, baseURL: api.URL, token: token, backend: backend}
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *apiClient) json(method, path string, body any) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	return c.do(method, path, reader, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (c *apiClient) startSession() string {
	c.t.Helper()
	resp := c.json(http.MethodPost, "/api/cadastro", nil)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	return decode[sessionResponse](c.t, resp).ID.String()
}

func (c *apiClient) attach(session string, index, name string) *http.Response {
	c.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(c.t, mw.Close())
	return c.do(http.MethodPut, "/api/cadastro/"+session+"/documentos/"+index, body, mw.FormDataContentType())
}

func TestHealthz_NoAuth(t *testing.T) {
	api := newAPI(t)
	api.token = ""

	resp := api.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = api.do(http.MethodGet, "/api/empresas", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegistrationFlow(t *testing.T) {
	api := newAPI(t)
	id := api.startSession()

	resp := api.json(http.MethodPatch, "/api/cadastro/"+id+"/campos", fieldRequest{Name: "cnpj", Value: "12.345.678/0001-90"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[sessionResponse](t, resp).Session
	assert.Equal(t, "12.345.678/0001-90", view.Draft.TaxID)
	assert.Equal(t, "Simples Nacional", view.Draft.Regime)

	resp = api.json(http.MethodPatch, "/api/cadastro/"+id+"/endereco", fieldRequest{Name: "cidade", Value: "Fortaleza"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPut, "/api/cadastro/"+id+"/fones", phonesRequest{Value: "85 9999-0000, 85 3333-0000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/listas/contatos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = api.json(http.MethodPatch, "/api/cadastro/"+id+"/listas/contatos/1", map[string]string{"nome": "Ana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ana", decode[sessionResponse](t, resp).Session.Draft.Contacts[1].Name)

	resp = api.attach(id, "0", "cartao.pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = api.attach(id, "1", "contrato.pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/revisao", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wizard.Reviewing, decode[sessionResponse](t, resp).Session.State)

	resp = api.json(http.MethodGet, "/api/cadastro/"+id+"/revisao", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Documents []review.DocumentLine `json:"documentos"`
		Actions   review.Actions        `json:"acoes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Documents, 2)
	assert.True(t, page.Actions.Confirm)

	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/confirmar", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[sessionResponse](t, resp).Session
	assert.Equal(t, wizard.Succeeded, view.State)
	require.NotNil(t, view.Company)
	assert.Equal(t, int64(7), view.Company.ID)
	_, uploads := api.backend.counts()
	assert.ElementsMatch(t, []string{"CNPJ_CARD", "CONTRACT"}, uploads)
	api.backend.mu.Lock()
	assert.Equal(t, "Bearer "+api.token, api.backend.lastAuth)
	api.backend.mu.Unlock()

	resp = api.json(http.MethodGet, "/api/empresas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 2)

	resp = api.json(http.MethodGet, "/api/kpis", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "12.345.678/0001-90", decode[map[string]any](t, resp)["cnpj_consultado"])
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t)
	id := api.startSession()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown session", http.MethodGet, "/api/cadastro/1b4e28ba-2fa1-11d2-883f-0016d3cca427", nil, http.StatusNotFound},
		{"malformed session id", http.MethodGet, "/api/cadastro/abc", nil, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/cadastro/" + id + "/campos", fieldRequest{Name: "capital", Value: "1"}, http.StatusBadRequest},
		{"missing field name", http.MethodPatch, "/api/cadastro/" + id + "/campos", map[string]string{"value": "1"}, http.StatusBadRequest},
		{"index out of range", http.MethodPatch, "/api/cadastro/" + id + "/listas/contatos/5", map[string]string{"nome": "x"}, http.StatusBadRequest},
		{"last list item", http.MethodDelete, "/api/cadastro/" + id + "/listas/inscricoes_estaduais/0", nil, http.StatusConflict},
		{"back while editing", http.MethodPost, "/api/cadastro/" + id + "/voltar", nil, http.StatusConflict},
		{"required fields", http.MethodPost, "/api/cadastro/" + id + "/revisao", nil, http.StatusUnprocessableEntity},
		{"bad kpi date", http.MethodGet, "/api/kpis?data_inicio=01/02/2025", nil, http.StatusBadRequest},
		{"bad document id", http.MethodPost, "/api/documentos/x/processar", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.json(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequiredFieldsBody(t *testing.T) {
	api := newAPI(t)
	id := api.startSession()

	resp := api.json(http.MethodPost, "/api/cadastro/"+id+"/revisao", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "client_validation", body.Error)
	assert.Equal(t, "cnpj", body.Field)
	assert.Equal(t, "CNPJ e Regime Tributário são obrigatórios.", body.Message)
	require.NotNil(t, body.Session)
	assert.Equal(t, wizard.Editing, body.Session.State)
}

func TestConfirm_BackendValidation(t *testing.T) {
	api := newAPI(t)
	api.backend.failCreate(http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","cnpj"],"msg":"invalid"}]}`)
	id := api.startSession()

	require.Equal(t, http.StatusOK, api.json(http.MethodPatch, "/api/cadastro/"+id+"/campos", fieldRequest{Name: "cnpj", Value: "1"}).StatusCode)
	require.Equal(t, http.StatusOK, api.json(http.MethodPost, "/api/cadastro/"+id+"/revisao", nil).StatusCode)

	resp := api.json(http.MethodPost, "/api/cadastro/"+id+"/confirmar", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "cnpj", body.Field)
	assert.Equal(t, "Erro de Validação: invalid (no campo: cnpj)", body.Message)
	assert.False(t, body.Partial)
	require.NotNil(t, body.Session)
	assert.Equal(t, wizard.Editing, body.Session.State)
}

func TestOwnership(t *testing.T) {
	api := newAPI(t)
	id := api.startSession()

	other, err := auth.GenerateToken("bruno", testSecret, time.Hour)
	require.NoError(t, err)
	api.token = other

	resp := api.json(http.MethodGet, "/api/cadastro/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentsPassthrough(t *testing.T) {
	api := newAPI(t)

	resp := api.json(http.MethodGet, "/api/documentos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 1)

	resp = api.json(http.MethodPost, "/api/documentos/3/processar", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DRE", decode[map[string]any](t, resp)["tipo_documento"])

	resp = api.json(http.MethodPut, "/api/documentos/3/dados", map[string]any{"receita": 100})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/documentos/4/processar", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAttach_MissingFilePart(t *testing.T) {
	api := newAPI(t)
	id := api.startSession()

	resp := api.do(http.MethodPut, "/api/cadastro/"+id+"/documentos/0", strings.NewReader("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirm_UploadFailureKeepsCompany(t *testing.T) {
	api := newAPI(t)
	api.backend.failUploads(http.StatusInternalServerError)
	id := api.startSession()

	require.Equal(t, http.StatusOK, api.json(http.MethodPatch, "/api/cadastro/"+id+"/campos", fieldRequest{Name: "cnpj", Value: "12.345.678/0001-90"}).StatusCode)
	require.Equal(t, http.StatusOK, api.attach(id, "0", "cartao.pdf").StatusCode)
	require.Equal(t, http.StatusOK, api.json(http.MethodPost, "/api/cadastro/"+id+"/revisao", nil).StatusCode)

	resp := api.json(http.MethodPost, "/api/cadastro/"+id+"/confirmar", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "partial_submission", body.Error)
	assert.True(t, body.Partial)
	require.NotNil(t, body.Session)
	assert.Equal(t, wizard.Reviewing, body.Session.State)
	require.NotNil(t, body.Session.Company)
	assert.Equal(t, int64(7), body.Session.Company.ID)

	resp = api.json(http.MethodPatch, "/api/cadastro/"+id+"/campos", fieldRequest{Name: "cnpj", Value: "99"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	api.backend.failUploads(0)
	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/confirmar", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wizard.Succeeded, decode[sessionResponse](t, resp).Session.State)

	creates, uploads := api.backend.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, []string{"CNPJ_CARD"}, uploads)
}

func TestReloadCatalog(t *testing.T) {
	api := newAPI(t)
	api.backend.setCatalogDown(true)

	resp := api.json(http.MethodPost, "/api/cadastro", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	started := decode[sessionResponse](t, resp)
	assert.Equal(t, "Não foi possível carregar as opções de regimes.", started.Session.Message)
	assert.Empty(t, started.Session.Slots)
	id := started.ID.String()

	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/regimes", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	api.backend.setCatalogDown(false)
	resp = api.json(http.MethodPost, "/api/cadastro/"+id+"/regimes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[sessionResponse](t, resp).Session
	assert.Equal(t, "Simples Nacional", view.Draft.Regime)
	assert.Len(t, view.Slots, 2)
	assert.Empty(t, view.Message)
}
