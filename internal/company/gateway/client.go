// Package gateway is the typed HTTP client of the accounting backend. Every
// failure leaves this package as a single *errors.Error value so callers never
// inspect response bodies themselves.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lucidcount/dashboard/internal/company/auth"
	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/models"
	"go.uber.org/zap"
)

const (
	pathCompanies      = "/empresas/"
	pathKpis           = "/analytics/kpis"
	pathUploadOptions  = "/upload-options/"
	pathUploadFiles    = "/upload/files/"
	pathDocuments      = "/documentos/"
	isoDate            = "2006-01-02"
	maxErrorBodyBytes  = 1 << 20
	defaultHTTPTimeout = 30 * time.Second
)

// Client calls the accounting backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client for baseURL. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("gateway"),
	}
}

// KpiQuery selects the company and period of a KPI snapshot.
type KpiQuery struct {
	TaxID  string
	Regime string
	Start  time.Time
	End    time.Time
}

// FetchRequirementCatalog loads the regime → document types catalog.
func (c *Client) FetchRequirementCatalog(ctx context.Context) (*models.RequirementCatalog, error) {
	var catalog models.RequirementCatalog
	if err := c.getJSON(ctx, pathUploadOptions, nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// FetchCompanies lists the registered companies.
func (c *Client) FetchCompanies(ctx context.Context) ([]models.Company, error) {
	companies := []models.Company{}
	if err := c.getJSON(ctx, pathCompanies, nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// FetchKpis loads the KPI snapshot of one company over [Start, End].
func (c *Client) FetchKpis(ctx context.Context, q KpiQuery) (*models.KpiSnapshot, error) {
	params := url.Values{}
	params.Set("cnpj", q.TaxID)
	if q.Regime != "" {
		params.Set("regime", q.Regime)
	}
	params.Set("data_inicio", q.Start.Format(isoDate))
	params.Set("data_fim", q.End.Format(isoDate))

	var snapshot models.KpiSnapshot
	if err := c.getJSON(ctx, pathKpis, params, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// CreateCompany submits the draft. Backend rejections with a usable detail
// come back as validation errors.
func (c *Client) CreateCompany(ctx context.Context, draft models.CompanyDraft) (*models.Company, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("%w: encode draft: %v", e.ErrInvalidInput, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, pathCompanies, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var company models.Company
	if err := c.do(req, &company, true); err != nil {
		return nil, err
	}
	return &company, nil
}

// FetchDocuments lists the uploaded documents.
func (c *Client) FetchDocuments(ctx context.Context) ([]models.Document, error) {
	documents := []models.Document{}
	if err := c.getJSON(ctx, pathDocuments, nil, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

// ProcessDocument asks the backend to extract data from a document.
func (c *Client) ProcessDocument(ctx context.Context, documentID int64) (*models.ProcessingResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, documentPath(documentID, "processar"), nil, nil)
	if err != nil {
		return nil, err
	}
	var result models.ProcessingResult
	if err := c.do(req, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveDocumentData stores reviewed extracted data of a document.
func (c *Client) SaveDocumentData(ctx context.Context, documentID int64, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode document data: %v", e.ErrInvalidInput, err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, documentPath(documentID, "dados"), nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil, false)
}

func documentPath(id int64, action string) string {
	return pathDocuments + strconv.FormatInt(id, 10) + "/" + action
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.do(req, out, false)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", e.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. When structured is set,
// error responses carrying a usable detail become validation errors.
func (c *Client) do(req *http.Request, out any, structured bool) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return e.NewNetworkError(0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		gwErr := decodeError(resp, structured)
		c.logger.Warn("Backend returned an error",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", gwErr.Kind.String()),
			zap.String("detail", gwErr.Message),
		)
		return gwErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return e.NewNetworkError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
