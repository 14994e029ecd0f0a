// Package models defines the domain models of the company registration dashboard:
// the draft edited by the wizard, the records returned by the accounting backend
// and the document slots derived from the requirement catalog.
package models

// Address is the optional postal address of a company. All fields are free text.
type Address struct {
	Street     string `json:"logradouro"`
	Number     string `json:"numero"`
	Complement string `json:"complemento"`
	PostalCode string `json:"cep"`
	District   string `json:"bairro"`
	City       string `json:"cidade"`
	State      string `json:"uf"`
}

// TaxRegistration is a state tax registration (inscrição estadual).
type TaxRegistration struct {
	Number string `json:"inscricao"`
	Date   string `json:"data"`
	State  string `json:"uf"`
}

// Contact is a person to reach inside the company.
type Contact struct {
	Name   string `json:"nome"`
	Role   string `json:"cargo"`
	Mobile string `json:"celular"`
	Email  string `json:"email"`
}

// CompanyDraft is the in-progress company record edited by the registration wizard.
// It is also the payload of the create-company request.
type CompanyDraft struct {
	// TaxID is the CNPJ. Format is validated by the backend.
	TaxID string `json:"cnpj" validate:"required"`
	// Regime is the tax regime, one of the requirement catalog keys.
	Regime         string `json:"regime_tributario" validate:"required"`
	LegalName      string `json:"razao_social"`
	TradeName      string `json:"nome_fantasia"`
	Active         bool   `json:"ativa"`
	Group          string `json:"grupo_empresas"`
	ContinuousName string `json:"apelido_continuo"`
	// Address is nil until the first address edit.
	Address          *Address          `json:"endereco,omitempty"`
	TaxRegistrations []TaxRegistration `json:"inscricoes_estaduais"`
	Contacts         []Contact         `json:"contatos"`
	// PhoneNumbers is derived from free text at submission time.
	PhoneNumbers          []string `json:"fones"`
	Website               string   `json:"website"`
	MunicipalRegistration string   `json:"inscricao_municipal"`
	RegistryNumber        string   `json:"nire"`
}

// Company is a company record as stored by the backend.
type Company struct {
	ID        int64  `json:"id"`
	TaxID     string `json:"cnpj"`
	Regime    string `json:"regime_tributario"`
	LegalName string `json:"razao_social,omitempty"`
	TradeName string `json:"nome_fantasia,omitempty"`
}

// Document is an uploaded fiscal document.
type Document struct {
	ID               int64  `json:"id"`
	CompanyID        int64  `json:"empresa_id"`
	Type             string `json:"tipo_documento"`
	OriginalFilename string `json:"nome_arquivo_original"`
	StoredFilename   string `json:"nome_arquivo_unico"`
	UploadedAt       string `json:"data_upload"`
}

// ProcessingResult is the data the backend extracted from a document.
type ProcessingResult struct {
	DocumentID    int64          `json:"documento_id"`
	Type          string         `json:"tipo_documento"`
	ExtractedData map[string]any `json:"dados_extraidos"`
}

// KpiSnapshot holds the tax KPIs of one company over a period. Values come
// preformatted from the backend.
type KpiSnapshot struct {
	TaxID            string            `json:"cnpj_consultado"`
	TaxBurdenPercent string            `json:"carga_tributaria_percentual"`
	AverageTicket    string            `json:"ticket_medio"`
	RevenueGrowth    string            `json:"crescimento_faturamento_percentual"`
	TaxesByType      map[string]string `json:"total_impostos_por_tipo"`
}

// Attachment is a file picked by the user for a document slot. It is kept in memory only.
type Attachment struct {
	Filename    string `json:"nome"`
	ContentType string `json:"tipo_conteudo"`
	Data        []byte `json:"-"`
}

// DocumentSlot pairs a required document type with an optional attached file.
type DocumentSlot struct {
	DocumentType string      `json:"tipo"`
	File         *Attachment `json:"arquivo,omitempty"`
}

// HasFile reports whether a file is attached to the slot.
func (s DocumentSlot) HasFile() bool {
	return s.File != nil
}
