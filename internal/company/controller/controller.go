// Package controller implements the service layer of the dashboard: it owns
// the registration wizard sessions of each user, keeps the company directory
// current and forwards the remaining dashboard reads to the backend.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lucidcount/dashboard/internal/company/auth"
	"github.com/lucidcount/dashboard/internal/company/directory"
	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/events"
	"github.com/lucidcount/dashboard/internal/company/gateway"
	"github.com/lucidcount/dashboard/internal/company/messages"
	"github.com/lucidcount/dashboard/internal/company/models"
	"github.com/lucidcount/dashboard/internal/company/review"
	"github.com/lucidcount/dashboard/internal/company/wizard"
	"go.uber.org/zap"
	"golang.org/x/text/message"
)

type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company, documents []models.Document)
}

// Backend is the accounting backend as seen by the service.
type Backend interface {
	wizard.Gateway
	directory.Source
	FetchKpis(ctx context.Context, q gateway.KpiQuery) (*models.KpiSnapshot, error)
	FetchDocuments(ctx context.Context) ([]models.Document, error)
	ProcessDocument(ctx context.Context, documentID int64) (*models.ProcessingResult, error)
	SaveDocumentData(ctx context.Context, documentID int64, data map[string]any) error
}

const DefaultSessionTTL = 30 * time.Minute

type session struct {
	owner    string
	wizard   *wizard.Wizard
	lastSeen time.Time
}

// CompanyService manages wizard sessions and the dashboard reads.
type CompanyService struct {
	backend   Backend
	directory *directory.Directory
	producer  EventProducer
	logger    *zap.Logger
	printer   *message.Printer
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// Option configures a CompanyService.
type Option func(*CompanyService)

// WithSessionTTL sets how long an idle session is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *CompanyService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrinter sets the locale of user-visible messages.
func WithPrinter(p *message.Printer) Option {
	return func(s *CompanyService) { s.printer = p }
}

// NewCompanyService constructs a CompanyService. producer may be nil when
// event publishing is disabled.
func NewCompanyService(backend Backend, dir *directory.Directory, producer EventProducer, logger *zap.Logger, opts ...Option) *CompanyService {
	s := &CompanyService{
		backend:   backend,
		directory: dir,
		producer:  producer,
		logger:    logger.Named("company_service"),
		printer:   messages.NewPrinter(""),
		ttl:       DefaultSessionTTL,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func owner(ctx context.Context) (string, error) {
	sub, ok := auth.SubjectFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("%w: unauthenticated caller", e.ErrInvalidInput)
	}
	return sub, nil
}

// StartSession opens a registration wizard for the caller and loads the
// requirement catalog. A catalog failure is reported in the view, not as an error.
func (s *CompanyService) StartSession(ctx context.Context) (uuid.UUID, wizard.View, error) {
	user, err := owner(ctx)
	if err != nil {
		return uuid.Nil, wizard.View{}, err
	}

	id := uuid.New()
	w := wizard.New(s.backend, s.logger.With(zap.String("session_id", id.String())),
		wizard.WithPrinter(s.printer),
		wizard.WithListener(&registrationListener{service: s, owner: user}),
	)
	if err := w.LoadCatalog(ctx); err != nil {
		s.logger.Warn("Session started without requirement catalog",
			zap.String("session_id", id.String()),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	s.sessions[id] = &session{owner: user, wizard: w, lastSeen: s.now()}
	s.mu.Unlock()

	s.logger.Info("Registration session started", zap.String("session_id", id.String()), zap.String("owner", user))
	return id, w.View(), nil
}

// lookup returns the caller's session. Sessions of other users are reported
// as not found.
func (s *CompanyService) lookup(ctx context.Context, id uuid.UUID) (*wizard.Wizard, error) {
	user, err := owner(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.owner != user {
		return nil, fmt.Errorf("%w: session %s", e.ErrNotFound, id)
	}
	sess.lastSeen = s.now()
	return sess.wizard, nil
}

// View returns the current state of a session.
func (s *CompanyService) View(ctx context.Context, id uuid.UUID) (wizard.View, error) {
	w, err := s.lookup(ctx, id)
	if err != nil {
		return wizard.View{}, err
	}
	return w.View(), nil
}

// Update applies fn to a session and returns the resulting view. The view is
// returned even when fn fails so callers can show the wizard's message; it is
// nil only when the session does not exist.
func (s *CompanyService) Update(ctx context.Context, id uuid.UUID, fn func(*wizard.Wizard) error) (*wizard.View, error) {
	w, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	err = fn(w)
	view := w.View()
	return &view, err
}

// Review renders the review page of a session.
func (s *CompanyService) Review(ctx context.Context, id uuid.UUID) (review.Page, error) {
	w, err := s.lookup(ctx, id)
	if err != nil {
		return review.Page{}, err
	}
	return review.Render(w.View(), s.printer), nil
}

// Confirm submits a session. A successful session is closed. Like Update,
// the view is nil only when the session does not exist.
func (s *CompanyService) Confirm(ctx context.Context, id uuid.UUID) (*wizard.View, error) {
	w, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	err = w.Confirm(ctx)
	view := w.View()
	if err != nil {
		s.logger.Error("Registration failed",
			zap.String("session_id", id.String()),
			zap.String("kind", e.KindOf(err).String()),
			zap.Error(err),
		)
		return &view, err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return &view, nil
}

// Discard drops a session.
func (s *CompanyService) Discard(ctx context.Context, id uuid.UUID) error {
	w, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if w.State() == wizard.Submitting {
		return e.ErrBusy
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops sessions idle for longer than the TTL at now, except those
// still submitting. It returns the number dropped.
func (s *CompanyService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.ttl || sess.wizard.State() == wizard.Submitting {
			continue
		}
		delete(s.sessions, id)
		dropped++
	}
	if dropped > 0 {
		s.logger.Info("Expired registration sessions dropped", zap.Int("count", dropped))
	}
	return dropped
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *CompanyService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Companies lists the directory, loading it on first use.
func (s *CompanyService) Companies(ctx context.Context) ([]models.Company, error) {
	if err := s.directory.Load(ctx); err != nil {
		return nil, err
	}
	return s.directory.List(), nil
}

// SelectCompany sets the caller's selected company.
func (s *CompanyService) SelectCompany(ctx context.Context, taxID string) error {
	user, err := owner(ctx)
	if err != nil {
		return err
	}
	if err := s.directory.Load(ctx); err != nil {
		return err
	}
	return s.directory.Select(user, taxID)
}

// Kpis fetches a KPI snapshot. An empty tax ID means the caller's selected
// company; zero dates mean today.
func (s *CompanyService) Kpis(ctx context.Context, q gateway.KpiQuery) (*models.KpiSnapshot, error) {
	if q.TaxID == "" {
		user, err := owner(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.directory.Load(ctx); err != nil {
			return nil, err
		}
		selected, ok := s.directory.Selected(user)
		if !ok {
			return nil, fmt.Errorf("%w: no company to report on", e.ErrNotFound)
		}
		q.TaxID = selected.TaxID
		if q.Regime == "" {
			q.Regime = selected.Regime
		}
	}
	today := s.now()
	if q.Start.IsZero() {
		q.Start = today
	}
	if q.End.IsZero() {
		q.End = today
	}
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("%w: data_fim before data_inicio", e.ErrInvalidInput)
	}
	return s.backend.FetchKpis(ctx, q)
}

// Documents lists the uploaded documents.
func (s *CompanyService) Documents(ctx context.Context) ([]models.Document, error) {
	return s.backend.FetchDocuments(ctx)
}

// ProcessDocument asks the backend to extract the data of a document.
func (s *CompanyService) ProcessDocument(ctx context.Context, documentID int64) (*models.ProcessingResult, error) {
	if documentID <= 0 {
		return nil, fmt.Errorf("%w: document id %d", e.ErrInvalidInput, documentID)
	}
	result, err := s.backend.ProcessDocument(ctx, documentID)
	if err != nil {
		s.logger.Error("Document processing failed", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// SaveDocumentData stores reviewed extracted data of a document.
func (s *CompanyService) SaveDocumentData(ctx context.Context, documentID int64, data map[string]any) error {
	if documentID <= 0 {
		return fmt.Errorf("%w: document id %d", e.ErrInvalidInput, documentID)
	}
	if err := s.backend.SaveDocumentData(ctx, documentID, data); err != nil {
		s.logger.Error("Saving document data failed", zap.Int64("document_id", documentID), zap.Error(err))
		return err
	}
	return nil
}

// HandleEvent applies a company event published by any replica.
func (s *CompanyService) HandleEvent(_ context.Context, event events.Event) error {
	if event.Type != events.CompanyCreated {
		return nil
	}
	if event.Company == nil {
		return fmt.Errorf("%w: event without company", e.ErrInvalidInput)
	}
	s.directory.Add(*event.Company)
	return nil
}

// registrationListener receives the success of one user's wizard.
type registrationListener struct {
	service *CompanyService
	owner   string
}

func (l *registrationListener) CompanyRegistered(_ context.Context, company *models.Company, documents []models.Document) {
	s := l.service
	s.directory.Add(*company)
	if err := s.directory.Select(l.owner, company.TaxID); err != nil {
		s.logger.Warn("Failed to select registered company", zap.Int64("company_id", company.ID), zap.Error(err))
	}
	if s.producer != nil {
		s.producer.Produce(events.CompanyCreated, company, documents)
	}
}
