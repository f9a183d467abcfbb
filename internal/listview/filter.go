package listview

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// Predicate decide se um registro aparece na lista filtrada.
// Um Predicate nil não restringe nada.
type Predicate[T any] func(T) bool

// Apply devolve os registros que satisfazem todos os predicados (AND), na
// ordem original. Não altera items.
func Apply[T any](items []T, preds ...Predicate[T]) []T {
	active := make([]Predicate[T], 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	out := make([]T, 0, len(items))
outer:
	for _, item := range items {
		for _, p := range active {
			if !p(item) {
				continue outer
			}
		}
		out = append(out, item)
	}
	return out
}

// Contains casa a busca textual (sem diferenciar caixa nem acentos) contra
// qualquer um dos campos. Busca vazia devolve nil.
func Contains[T any](query string, fields ...func(T) string) Predicate[T] {
	needle := utils.FoldText(query)
	if needle == "" || len(fields) == 0 {
		return nil
	}
	return func(item T) bool {
		for _, f := range fields {
			if strings.Contains(utils.FoldText(f(item)), needle) {
				return true
			}
		}
		return false
	}
}

// Equals exige igualdade exata do campo. O valor zero de V devolve nil.
func Equals[T any, V comparable](want V, get func(T) V) Predicate[T] {
	var zero V
	if want == zero {
		return nil
	}
	return func(item T) bool {
		return get(item) == want
	}
}

// InRange exige a data dentro de [from, to]; limites zero ficam em aberto.
// Com os dois limites zero devolve nil. Registros sem data (zero) não passam.
func InRange[T any](from, to time.Time, get func(T) time.Time) Predicate[T] {
	if from.IsZero() && to.IsZero() {
		return nil
	}
	return func(item T) bool {
		t := get(item)
		if t.IsZero() {
			return false
		}
		if !from.IsZero() && t.Before(from) {
			return false
		}
		if !to.IsZero() && t.After(to) {
			return false
		}
		return true
	}
}

// Bucket é um período relativo à data atual usado nos filtros de data.
type Bucket string

const (
	BucketNone   Bucket = ""
	BucketHoje   Bucket = "hoje"
	BucketSemana Bucket = "semana"
	BucketMes    Bucket = "mes"
	BucketAno    Bucket = "ano"
)

// ParseBucket aceita "hoje", "semana", "mes"/"mês" e "ano"; vazio é BucketNone.
func ParseBucket(raw string) (Bucket, error) {
	switch b := Bucket(utils.FoldText(raw)); b {
	case BucketNone, BucketHoje, BucketSemana, BucketMes, BucketAno:
		return b, nil
	default:
		return BucketNone, fmt.Errorf("%w: período desconhecido %q", appErrors.ErrInvalidInput, raw)
	}
}

// Bounds devolve o intervalo [início, fim) do período que contém now.
// A semana começa na segunda-feira.
func (b Bucket) Bounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch b {
	case BucketHoje:
		return day, day.AddDate(0, 0, 1)
	case BucketSemana:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case BucketMes:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case BucketAno:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

// InBucket exige a data dentro do período que contém now. BucketNone devolve nil.
func InBucket[T any](bucket Bucket, now time.Time, get func(T) time.Time) Predicate[T] {
	if bucket == BucketNone {
		return nil
	}
	start, end := bucket.Bounds(now)
	return func(item T) bool {
		t := get(item)
		if t.IsZero() {
			return false
		}
		t = t.In(now.Location())
		return !t.Before(start) && t.Before(end)
	}
}
