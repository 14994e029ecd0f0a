// Package review projects a wizard session into the read-only review page.
package review

import (
	"strings"

	"github.com/lucidcount/dashboard/internal/company/draft"
	"github.com/lucidcount/dashboard/internal/company/messages"
	"github.com/lucidcount/dashboard/internal/company/wizard"
	"golang.org/x/text/message"
)

// Line is one labelled value of the review.
type Line struct {
	Label string `json:"rotulo"`
	Value string `json:"valor"`
}

// DocumentLine is an attached file, shown as "type: filename".
type DocumentLine struct {
	Type     string `json:"tipo"`
	Filename string `json:"arquivo"`
}

func (d DocumentLine) String() string {
	return d.Type + ": " + d.Filename
}

// Actions are the two things a user can do from the review.
type Actions struct {
	Back    bool `json:"voltar"`
	Confirm bool `json:"confirmar"`
}

// Page is the rendered review.
type Page struct {
	State     wizard.State    `json:"estado"`
	Fields    []Line          `json:"campos"`
	Documents []DocumentLine  `json:"documentos"`
	Empty     string          `json:"sem_documentos,omitempty"`
	Actions   Actions         `json:"acoes"`
	Message   string          `json:"mensagem,omitempty"`
	Failure   *wizard.Failure `json:"falha,omitempty"`
}

// Render builds the review page for view. Optional fields left empty show as
// "N/A"; both actions are disabled unless the wizard is Reviewing.
func Render(view wizard.View, p *message.Printer) Page {
	d := view.Draft
	na := p.Sprintf(messages.NotAvailable)
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return na
		}
		return s
	}
	active := p.Sprintf(messages.No)
	if d.Active {
		active = p.Sprintf(messages.Yes)
	}

	page := Page{
		State: view.State,
		Fields: []Line{
			{Label: p.Sprintf(messages.LabelTaxID), Value: d.TaxID},
			{Label: p.Sprintf(messages.LabelLegalName), Value: orNA(d.LegalName)},
			{Label: p.Sprintf(messages.LabelTradeName), Value: orNA(d.TradeName)},
			{Label: p.Sprintf(messages.LabelRegime), Value: d.Regime},
			{Label: p.Sprintf(messages.LabelActive), Value: active},
			{Label: p.Sprintf(messages.LabelGroup), Value: orNA(d.Group)},
			{Label: p.Sprintf(messages.LabelPhones), Value: orNA(strings.Join(draft.PhoneNumbers(view.Phones), ", "))},
			{Label: p.Sprintf(messages.LabelWebsite), Value: orNA(d.Website)},
			{Label: p.Sprintf(messages.LabelMunicipal), Value: orNA(d.MunicipalRegistration)},
			{Label: p.Sprintf(messages.LabelRegistry), Value: orNA(d.RegistryNumber)},
		},
		Documents: []DocumentLine{},
		Message:   view.Message,
		Failure:   view.Failure,
	}

	for _, slot := range view.Slots {
		if slot.HasFile() {
			page.Documents = append(page.Documents, DocumentLine{Type: slot.DocumentType, Filename: slot.File.Filename})
		}
	}
	if len(page.Documents) == 0 {
		page.Empty = p.Sprintf(messages.NoDocuments)
	}

	enabled := view.State == wizard.Reviewing
	page.Actions = Actions{Back: enabled, Confirm: enabled}
	return page
}
