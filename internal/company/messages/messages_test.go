package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPrinter(t *testing.T) {
	pt := NewPrinter("")
	assert.Equal(t, "CNPJ e Regime Tributário são obrigatórios.", pt.Sprintf(RequiredFields))
	assert.Equal(t, "Erro de Validação: invalid (no campo: cnpj)", pt.Sprintf(FieldValidation, "invalid", "cnpj"))

	en := NewPrinter("en")
	assert.Equal(t, "Validation error: invalid (field: cnpj)", en.Sprintf(FieldValidation, "invalid", "cnpj"))
	assert.Equal(t, "N/A", en.Sprintf(NotAvailable))

	fallback := NewPrinter("not a locale!")
	assert.Equal(t, "Sim", fallback.Sprintf(Yes))
}
