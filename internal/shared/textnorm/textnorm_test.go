package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyComposesDecomposedInput(t *testing.T) {
	decomposed := "Sa\u0303o Paulo"
	composed := "S\u00e3o Paulo"

	assert.NotEqual(t, decomposed, composed)
	assert.Equal(t, composed, Key(decomposed))
	assert.Equal(t, composed, Key("  "+composed+"\t"))
}

func TestFold(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Unidade da Federação", "unidade da federacao"},
		{"Ano", " ANO "},
		{"Valor", "valor"},
		{"Espírito  Santo", "espirito santo"},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			assert.True(t, EqualFold(tt.a, tt.b))
		})
	}

	assert.False(t, EqualFold("Ano", "Mês"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "sao-paulo", Slug("São Paulo"))
	assert.Equal(t, "mato-grosso-do-sul", Slug("Mato Grosso do Sul"))
	assert.Equal(t, "piaui", Slug("Piauí"))
	assert.Equal(t, "a-b", Slug("--a / b--"))
}
