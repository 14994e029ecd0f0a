// Package wizard implements the two-step company registration flow: the user
// edits a draft, reviews it, and confirms a submission that creates the
// company and then uploads the attached documents.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/lucidcount/dashboard/internal/company/draft"
	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/messages"
	"github.com/lucidcount/dashboard/internal/company/models"
	"github.com/lucidcount/dashboard/internal/company/requirements"
	"go.uber.org/zap"
	"golang.org/x/text/message"
)

// Gateway is the part of the backend client the wizard needs.
type Gateway interface {
	FetchRequirementCatalog(ctx context.Context) (*models.RequirementCatalog, error)
	CreateCompany(ctx context.Context, draft models.CompanyDraft) (*models.Company, error)
	UploadDocuments(ctx context.Context, taxID, regime string, slots []models.DocumentSlot) ([]models.Document, error)
}

// Listener is told about companies registered through the wizard.
type Listener interface {
	CompanyRegistered(ctx context.Context, company *models.Company, documents []models.Document)
}

// Failure describes the last failed attempt for display.
type Failure struct {
	Kind    string `json:"tipo"`
	Field   string `json:"campo,omitempty"`
	Detail  string `json:"detalhe,omitempty"`
	Message string `json:"mensagem"`
	// Partial is set when the company exists but its documents were not stored.
	Partial bool `json:"parcial"`
}

// View is a consistent copy of the wizard state.
type View struct {
	State     State                 `json:"estado"`
	Draft     models.CompanyDraft   `json:"empresa"`
	Phones    string                `json:"fones_texto"`
	Regimes   []string              `json:"regimes"`
	Slots     []models.DocumentSlot `json:"documentos"`
	Message   string                `json:"mensagem,omitempty"`
	Failure   *Failure              `json:"falha,omitempty"`
	Company   *models.Company       `json:"empresa_criada,omitempty"`
	Documents []models.Document     `json:"documentos_enviados,omitempty"`
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithListener registers the collaborator notified on success.
func WithListener(l Listener) Option {
	return func(w *Wizard) { w.listener = l }
}

// WithPrinter sets the printer used for user-visible messages.
func WithPrinter(p *message.Printer) Option {
	return func(w *Wizard) { w.printer = p }
}

// Wizard is the controller of one registration session. It is safe for
// concurrent use; mutations are only accepted while Editing.
type Wizard struct {
	gateway  Gateway
	listener Listener
	logger   *zap.Logger
	printer  *message.Printer
	validate *validator.Validate

	mu        sync.Mutex
	state     State
	draft     models.CompanyDraft
	phones    string
	catalog   *models.RequirementCatalog
	slots     []models.DocumentSlot
	message   string
	failure   *Failure
	created   *models.Company
	documents []models.Document
}

// New returns a wizard in Editing with the skeleton draft and no slots.
func New(gateway Gateway, logger *zap.Logger, opts ...Option) *Wizard {
	w := &Wizard{
		gateway:  gateway,
		logger:   logger.Named("wizard"),
		printer:  messages.NewPrinter(""),
		validate: newValidator(),
		state:    Editing,
		draft:    draft.New(),
		slots:    []models.DocumentSlot{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadCatalog fetches the requirement catalog, defaults the regime to the first
// catalog entry when none is chosen or the chosen one is not listed, and derives
// the document slots. It may be called again after a failure; a reload that
// yields the same document types keeps the attached files.
func (w *Wizard) LoadCatalog(ctx context.Context) error {
	catalog, err := w.gateway.FetchRequirementCatalog(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.message = w.printer.Sprintf(messages.CatalogUnavailable)
		w.logger.Error("Failed to load requirement catalog", zap.Error(err))
		return fmt.Errorf("load requirement catalog: %w", err)
	}

	w.catalog = catalog
	if w.state != Editing || w.created != nil {
		return nil
	}
	if regimes := catalog.Regimes(); len(regimes) > 0 {
		if _, ok := catalog.DocumentTypes(w.draft.Regime); !ok {
			w.draft.Regime = regimes[0]
		}
	}
	if fresh := requirements.Resolve(w.draft.Regime, w.catalog); !sameTypes(w.slots, fresh) {
		w.slots = fresh
	}
	if w.message == w.printer.Sprintf(messages.CatalogUnavailable) {
		w.message = ""
	}
	return nil
}

func sameTypes(a, b []models.DocumentSlot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].DocumentType != b[i].DocumentType {
			return false
		}
	}
	return true
}

// edit runs fn under the lock if the wizard accepts mutations.
func (w *Wizard) edit(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireState(Editing); err != nil {
		return err
	}
	return fn()
}

// editDraft is edit for changes to the draft itself, which are refused once
// the company exists on the backend.
func (w *Wizard) editDraft(fn func() error) error {
	return w.edit(func() error {
		if w.created != nil {
			return e.ErrCompanyLocked
		}
		return fn()
	})
}

func (w *Wizard) requireState(want State) error {
	switch {
	case w.state == want:
		return nil
	case w.state == Submitting:
		return e.ErrBusy
	default:
		return fmt.Errorf("%w: %s, want %s", e.ErrInvalidTransition, w.state, want)
	}
}

// SetField sets a top-level draft field. Changing the regime re-derives the
// document slots, dropping attached files.
func (w *Wizard) SetField(name, value string) error {
	return w.editDraft(func() error {
		if name == draft.FieldRegime && value != "" && w.catalog != nil {
			if _, ok := w.catalog.DocumentTypes(value); !ok {
				return fmt.Errorf("%w: unknown regime %q", e.ErrInvalidInput, value)
			}
		}
		updated, err := draft.WithField(w.draft, name, value)
		if err != nil {
			return err
		}
		regimeChanged := updated.Regime != w.draft.Regime
		w.draft = updated
		if regimeChanged {
			w.slots = requirements.Resolve(w.draft.Regime, w.catalog)
		}
		return nil
	})
}

// SetAddressField sets one field of the address.
func (w *Wizard) SetAddressField(name, value string) error {
	return w.editDraft(func() error {
		updated, err := draft.WithAddressField(w.draft, name, value)
		if err != nil {
			return err
		}
		w.draft = updated
		return nil
	})
}

// UpdateListItem merges patch into one tax registration or contact.
func (w *Wizard) UpdateListItem(list draft.List, index int, patch map[string]string) error {
	return w.editDraft(func() error {
		updated, err := draft.WithListItemAt(w.draft, list, index, patch)
		if err != nil {
			return err
		}
		w.draft = updated
		return nil
	})
}

// AppendListItem adds a blank tax registration or contact.
func (w *Wizard) AppendListItem(list draft.List) error {
	return w.editDraft(func() error {
		updated, err := draft.AppendListItem(w.draft, list)
		if err != nil {
			return err
		}
		w.draft = updated
		return nil
	})
}

// RemoveListItem removes a tax registration or contact, keeping at least one.
func (w *Wizard) RemoveListItem(list draft.List, index int) error {
	return w.editDraft(func() error {
		n, err := draft.ListLen(w.draft, list)
		if err != nil {
			return err
		}
		if n <= 1 {
			return fmt.Errorf("%w: %s", e.ErrLastListItem, list)
		}
		updated, err := draft.RemoveListItem(w.draft, list, index)
		if err != nil {
			return err
		}
		w.draft = updated
		return nil
	})
}

// SetPhones stores the comma-separated phone text.
func (w *Wizard) SetPhones(text string) error {
	return w.editDraft(func() error {
		w.phones = text
		return nil
	})
}

// AttachFile puts a file in the slot at index, replacing any previous one.
func (w *Wizard) AttachFile(index int, file models.Attachment) error {
	return w.edit(func() error {
		if index < 0 || index >= len(w.slots) {
			return fmt.Errorf("%w: documentos[%d]", e.ErrIndexOutOfRange, index)
		}
		slots := append([]models.DocumentSlot(nil), w.slots...)
		slots[index].File = &file
		w.slots = slots
		return nil
	})
}

// DetachFile clears the slot at index.
func (w *Wizard) DetachFile(index int) error {
	return w.edit(func() error {
		if index < 0 || index >= len(w.slots) {
			return fmt.Errorf("%w: documentos[%d]", e.ErrIndexOutOfRange, index)
		}
		slots := append([]models.DocumentSlot(nil), w.slots...)
		slots[index].File = nil
		w.slots = slots
		return nil
	})
}

// Continue moves from Editing to Reviewing when tax ID and regime are set.
func (w *Wizard) Continue() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireState(Editing); err != nil {
		return err
	}

	if err := w.validate.Struct(w.draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate draft: %w", err)
		}
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		clientErr := e.NewClientValidationError(fields...)
		w.message = w.printer.Sprintf(messages.RequiredFields)
		w.failure = w.describe(clientErr)
		return clientErr
	}

	w.message = ""
	w.failure = nil
	w.transition(Reviewing)
	return nil
}

// Back returns from Reviewing to Editing, keeping draft and slots.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireState(Reviewing); err != nil {
		return err
	}
	w.transition(Editing)
	return nil
}

// Confirm submits the reviewed draft: create the company, then upload the
// attached documents. A create failure returns the wizard to Editing. An
// upload failure keeps the created company and returns to Reviewing so the
// next Confirm only retries the upload.
func (w *Wizard) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if err := w.requireState(Reviewing); err != nil {
		w.mu.Unlock()
		return err
	}
	w.transition(Submitting)
	w.message = ""
	w.failure = nil
	payload := draft.WithPhoneNumbers(w.draft, w.phones)
	attached := requirements.Attached(w.slots)
	company := w.created
	w.mu.Unlock()

	// The submission outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)

	if company == nil {
		created, err := w.gateway.CreateCompany(ctx, payload)
		if err != nil {
			w.mu.Lock()
			w.fail(err, Editing)
			w.mu.Unlock()
			return fmt.Errorf("create company: %w", err)
		}
		company = created
		w.mu.Lock()
		w.created = company
		w.draft = payload
		w.mu.Unlock()
		w.logger.Info("Company created", zap.Int64("company_id", company.ID), zap.String("cnpj", payload.TaxID))
	}

	documents := []models.Document{}
	if len(attached) > 0 {
		uploaded, err := w.gateway.UploadDocuments(ctx, payload.TaxID, payload.Regime, attached)
		if err != nil {
			partial := e.NewPartialSubmissionError(err)
			w.mu.Lock()
			w.fail(partial, Reviewing)
			w.mu.Unlock()
			return fmt.Errorf("upload documents: %w", partial)
		}
		documents = uploaded
	}

	w.mu.Lock()
	w.documents = documents
	w.message = w.printer.Sprintf(messages.Registered)
	w.transition(Succeeded)
	w.mu.Unlock()

	if w.listener != nil {
		w.listener.CompanyRegistered(ctx, company, documents)
	}
	return nil
}

// fail records err through the Failed state and hands control to next.
func (w *Wizard) fail(err error, next State) {
	w.transition(Failed)
	w.failure = w.describe(err)
	w.message = w.failure.Message
	w.logger.Error("Submission failed",
		zap.Error(err),
		zap.String("kind", w.failure.Kind),
		zap.String("resume", next.String()),
	)
	w.transition(next)
}

func (w *Wizard) transition(next State) {
	w.logger.Debug("Wizard transition", zap.Stringer("from", w.state), zap.Stringer("to", next))
	w.state = next
}

// describe renders err as a user-visible failure.
func (w *Wizard) describe(err error) *Failure {
	gwErr, ok := e.As(err)
	if !ok {
		return &Failure{Kind: "unknown", Message: w.printer.Sprintf(messages.CreateFailed)}
	}

	f := &Failure{Kind: gwErr.Kind.String(), Field: gwErr.Field, Detail: gwErr.Message}
	switch gwErr.Kind {
	case e.KindClientValidation:
		f.Message = w.printer.Sprintf(messages.RequiredFields)
	case e.KindValidation:
		switch {
		case gwErr.Field != "":
			detail := gwErr.Message
			if detail == "" {
				detail = w.printer.Sprintf(messages.CreateFailed)
			}
			f.Message = w.printer.Sprintf(messages.FieldValidation, detail, gwErr.Field)
		case gwErr.Message != "":
			f.Message = gwErr.Message
		default:
			f.Message = w.printer.Sprintf(messages.CreateFailed)
		}
	case e.KindPartialSubmission:
		f.Partial = true
		reason := w.printer.Sprintf(messages.UploadFailed)
		if inner, ok := e.As(gwErr.Err); ok && inner.Message != "" {
			reason = inner.Message
			f.Detail = inner.Message
		}
		f.Message = w.printer.Sprintf(messages.PartialSubmission, reason)
	case e.KindNetwork:
		if gwErr.StatusCode == 0 {
			f.Message = w.printer.Sprintf(messages.NetworkFailure)
		} else {
			f.Message = w.printer.Sprintf(messages.CreateFailed)
		}
	default:
		f.Message = w.printer.Sprintf(messages.CreateFailed)
	}
	return f
}

// State returns the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// View returns a copy of the wizard state.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		State:     w.state,
		Draft:     draft.Clone(w.draft),
		Phones:    w.phones,
		Regimes:   w.catalog.Regimes(),
		Slots:     append([]models.DocumentSlot{}, w.slots...),
		Message:   w.message,
		Documents: append([]models.Document(nil), w.documents...),
	}
	if w.failure != nil {
		f := *w.failure
		v.Failure = &f
	}
	if w.created != nil {
		c := *w.created
		v.Company = &c
	}
	return v
}
