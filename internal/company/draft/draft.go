// Package draft holds the form state of the company registration wizard as
// pure update functions: every operation takes a draft and returns a new one,
// leaving the input untouched.
package draft

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/models"
)

// List names a variable-length sub-list of the draft.
type List string

const (
	TaxRegistrations List = "inscricoes_estaduais"
	Contacts         List = "contatos"
)

// Field names accepted by WithField, matching the draft JSON names.
const (
	FieldTaxID                 = "cnpj"
	FieldRegime                = "regime_tributario"
	FieldLegalName             = "razao_social"
	FieldTradeName             = "nome_fantasia"
	FieldActive                = "ativa"
	FieldGroup                 = "grupo_empresas"
	FieldContinuousName        = "apelido_continuo"
	FieldWebsite               = "website"
	FieldMunicipalRegistration = "inscricao_municipal"
	FieldRegistryNumber        = "nire"
)

const (
	defaultGroup             = "Geral"
	defaultRegistrationState = "CE"
)

// New returns the skeleton draft the wizard starts from.
func New() models.CompanyDraft {
	return models.CompanyDraft{
		Active:           true,
		Group:            defaultGroup,
		Address:          &models.Address{},
		TaxRegistrations: []models.TaxRegistration{newTaxRegistration()},
		Contacts:         []models.Contact{{}},
		PhoneNumbers:     []string{},
	}
}

func newTaxRegistration() models.TaxRegistration {
	return models.TaxRegistration{State: defaultRegistrationState}
}

// Clone returns a deep copy of d.
func Clone(d models.CompanyDraft) models.CompanyDraft {
	out := d
	if d.Address != nil {
		addr := *d.Address
		out.Address = &addr
	}
	out.TaxRegistrations = slices.Clone(d.TaxRegistrations)
	out.Contacts = slices.Clone(d.Contacts)
	out.PhoneNumbers = slices.Clone(d.PhoneNumbers)
	return out
}

// WithField sets a top-level field by its JSON name.
func WithField(d models.CompanyDraft, name, value string) (models.CompanyDraft, error) {
	out := Clone(d)
	switch name {
	case FieldTaxID:
		out.TaxID = value
	case FieldRegime:
		out.Regime = value
	case FieldLegalName:
		out.LegalName = value
	case FieldTradeName:
		out.TradeName = value
	case FieldActive:
		active, err := parseActive(value)
		if err != nil {
			return d, err
		}
		out.Active = active
	case FieldGroup:
		out.Group = value
	case FieldContinuousName:
		out.ContinuousName = value
	case FieldWebsite:
		out.Website = value
	case FieldMunicipalRegistration:
		out.MunicipalRegistration = value
	case FieldRegistryNumber:
		out.RegistryNumber = value
	default:
		return d, fmt.Errorf("%w: %q", e.ErrUnknownField, name)
	}
	return out, nil
}

// parseActive accepts the select values of the form ("Sim"/"Não") and Go booleans.
func parseActive(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sim":
		return true, nil
	case "não", "nao":
		return false, nil
	}
	active, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: ativa=%q", e.ErrInvalidInput, value)
	}
	return active, nil
}

// WithAddressField sets one address field, creating the address record on first edit.
func WithAddressField(d models.CompanyDraft, name, value string) (models.CompanyDraft, error) {
	out := Clone(d)
	if out.Address == nil {
		out.Address = &models.Address{}
	}
	addr := out.Address
	switch name {
	case "logradouro":
		addr.Street = value
	case "numero":
		addr.Number = value
	case "complemento":
		addr.Complement = value
	case "cep":
		addr.PostalCode = value
	case "bairro":
		addr.District = value
	case "cidade":
		addr.City = value
	case "uf":
		addr.State = value
	default:
		return d, fmt.Errorf("%w: endereco.%s", e.ErrUnknownField, name)
	}
	return out, nil
}

// ListLen returns the length of the named list.
func ListLen(d models.CompanyDraft, list List) (int, error) {
	switch list {
	case TaxRegistrations:
		return len(d.TaxRegistrations), nil
	case Contacts:
		return len(d.Contacts), nil
	default:
		return 0, fmt.Errorf("%w: list %q", e.ErrUnknownField, list)
	}
}

// WithListItemAt merges patch into the element at index of the named list.
func WithListItemAt(d models.CompanyDraft, list List, index int, patch map[string]string) (models.CompanyDraft, error) {
	n, err := ListLen(d, list)
	if err != nil {
		return d, err
	}
	if index < 0 || index >= n {
		return d, fmt.Errorf("%w: %s[%d]", e.ErrIndexOutOfRange, list, index)
	}

	out := Clone(d)
	for name, value := range patch {
		switch list {
		case TaxRegistrations:
			err = patchTaxRegistration(&out.TaxRegistrations[index], name, value)
		case Contacts:
			err = patchContact(&out.Contacts[index], name, value)
		}
		if err != nil {
			return d, err
		}
	}
	return out, nil
}

func patchTaxRegistration(r *models.TaxRegistration, name, value string) error {
	switch name {
	case "inscricao":
		r.Number = value
	case "data":
		r.Date = value
	case "uf":
		r.State = value
	default:
		return fmt.Errorf("%w: %s.%s", e.ErrUnknownField, TaxRegistrations, name)
	}
	return nil
}

func patchContact(c *models.Contact, name, value string) error {
	switch name {
	case "nome":
		c.Name = value
	case "cargo":
		c.Role = value
	case "celular":
		c.Mobile = value
	case "email":
		c.Email = value
	default:
		return fmt.Errorf("%w: %s.%s", e.ErrUnknownField, Contacts, name)
	}
	return nil
}

// AppendListItem appends a default element to the named list.
func AppendListItem(d models.CompanyDraft, list List) (models.CompanyDraft, error) {
	out := Clone(d)
	switch list {
	case TaxRegistrations:
		out.TaxRegistrations = append(out.TaxRegistrations, newTaxRegistration())
	case Contacts:
		out.Contacts = append(out.Contacts, models.Contact{})
	default:
		return d, fmt.Errorf("%w: list %q", e.ErrUnknownField, list)
	}
	return out, nil
}

// RemoveListItem removes the element at index. Empty lists are allowed here;
// the wizard keeps at least one element.
func RemoveListItem(d models.CompanyDraft, list List, index int) (models.CompanyDraft, error) {
	n, err := ListLen(d, list)
	if err != nil {
		return d, err
	}
	if index < 0 || index >= n {
		return d, fmt.Errorf("%w: %s[%d]", e.ErrIndexOutOfRange, list, index)
	}

	out := Clone(d)
	switch list {
	case TaxRegistrations:
		out.TaxRegistrations = append(out.TaxRegistrations[:index], out.TaxRegistrations[index+1:]...)
	case Contacts:
		out.Contacts = append(out.Contacts[:index], out.Contacts[index+1:]...)
	}
	return out, nil
}

// PhoneNumbers splits the free-text phone field on commas, trimming blanks away.
func PhoneNumbers(text string) []string {
	phones := []string{}
	for _, part := range strings.Split(text, ",") {
		if phone := strings.TrimSpace(part); phone != "" {
			phones = append(phones, phone)
		}
	}
	return phones
}

// WithPhoneNumbers returns d with the phone list derived from text.
func WithPhoneNumbers(d models.CompanyDraft, text string) models.CompanyDraft {
	out := Clone(d)
	out.PhoneNumbers = PhoneNumbers(text)
	return out
}
