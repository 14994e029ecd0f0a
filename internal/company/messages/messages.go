// Package messages holds the user-visible strings of the dashboard. Keys are the
// English texts; Brazilian Portuguese is the default locale.
package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	RequiredFields     = "Tax ID and tax regime are required."
	CatalogUnavailable = "Could not load the tax regime options."
	CreateFailed       = "An error occurred while creating the company."
	FieldValidation    = "Validation error: %s (field: %s)"
	UnknownField       = "unknown"
	NetworkFailure     = "Could not reach the server. Check your connection and try again."
	PartialSubmission  = "The company was registered, but uploading the documents failed: %s. Confirm again to retry the upload."
	UploadFailed       = "document upload failed"
	Registered         = "Company registered successfully!"
	NotAvailable       = "N/A"
	Yes                = "Yes"
	No                 = "No"
	NoDocuments        = "No document selected."
	LabelTaxID         = "Tax ID"
	LabelLegalName     = "Legal name"
	LabelTradeName     = "Trade name"
	LabelRegime        = "Tax regime"
	LabelActive        = "Active"
	LabelGroup         = "Company group"
	LabelWebsite       = "Website"
	LabelPhones        = "Phones"
	LabelRegistry      = "NIRE"
	LabelMunicipal     = "Municipal registration"
)

// DefaultLanguage is used when no locale is configured.
var DefaultLanguage = language.BrazilianPortuguese

var portuguese = map[string]string{
	RequiredFields:     "CNPJ e Regime Tributário são obrigatórios.",
	CatalogUnavailable: "Não foi possível carregar as opções de regimes.",
	CreateFailed:       "Ocorreu um erro ao criar a empresa.",
	FieldValidation:    "Erro de Validação: %s (no campo: %s)",
	UnknownField:       "desconhecido",
	NetworkFailure:     "Não foi possível contactar o servidor. Verifique a sua conexão e tente novamente.",
	PartialSubmission:  "A empresa foi cadastrada, mas o envio dos documentos falhou: %s. Confirme novamente para reenviar os documentos.",
	UploadFailed:       "falha no envio dos documentos",
	Registered:         "Empresa cadastrada com sucesso!",
	NotAvailable:       "N/A",
	Yes:                "Sim",
	No:                 "Não",
	NoDocuments:        "Nenhum documento selecionado.",
	LabelTaxID:         "CNPJ",
	LabelLegalName:     "Razão Social",
	LabelTradeName:     "Nome Fantasia",
	LabelRegime:        "Regime Tributário",
	LabelActive:        "Ativa",
	LabelGroup:         "Grupo de Empresas",
	LabelWebsite:       "Website",
	LabelPhones:        "Fones",
	LabelRegistry:      "NIRE",
	LabelMunicipal:     "Insc. Municipal",
}

func init() {
	for key, msg := range portuguese {
		if err := message.SetString(language.BrazilianPortuguese, key, msg); err != nil {
			panic(err)
		}
	}
}

// NewPrinter returns a printer for locale (a BCP 47 tag such as "pt-BR" or "en").
// Unparseable or empty locales fall back to DefaultLanguage.
func NewPrinter(locale string) *message.Printer {
	tag := DefaultLanguage
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			tag = parsed
		}
	}
	return message.NewPrinter(tag)
}
