package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

// Filter restringe uma assinatura às linhas cuja coluna é igual ao valor.
// O filtro zero aceita todas as linhas.
type Filter struct {
	Column string
	Value  string
}

// Eq cria um filtro de igualdade.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// ParseFilter interpreta a expressão "coluna=eq.valor". Expressão vazia devolve o filtro zero.
func ParseFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(expr, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("%w: filtro %q sem coluna", appErrors.ErrInvalidInput, expr)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok || op != "eq" {
		return Filter{}, fmt.Errorf("%w: filtro %q: apenas o operador eq é suportado", appErrors.ErrInvalidInput, expr)
	}
	return Filter{Column: column, Value: value}, nil
}

// IsZero informa se o filtro aceita tudo.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches avalia o filtro sobre a linha relevante do evento.
func (f Filter) Matches(ev ChangeEvent) bool {
	if f.IsZero() {
		return true
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(ev.Row(), &row); err != nil {
		return false
	}
	raw, ok := row[f.Column]
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == f.Value
	}
	return string(raw) == f.Value
}
