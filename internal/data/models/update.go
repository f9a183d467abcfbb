package models

import (
	"time"

	"github.com/google/uuid"
)

// setField copia src para dst quando informado e diferente, registrando a coluna alterada.
func setField[T comparable](changes map[string]interface{}, column string, dst *T, src *T) {
	if src == nil || *dst == *src {
		return
	}
	*dst = *src
	changes[column] = *src
}

// setRef trata chaves estrangeiras opcionais: uuid.Nil limpa a referência.
func setRef(changes map[string]interface{}, column string, dst **uuid.UUID, src *uuid.UUID) {
	if src == nil {
		return
	}
	if *src == uuid.Nil {
		if *dst != nil {
			*dst = nil
			changes[column] = nil
		}
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	id := *src
	*dst = &id
	changes[column] = id
}

// setTime trata datas opcionais: o instante zero limpa o campo.
func setTime(changes map[string]interface{}, column string, dst **time.Time, src *time.Time) {
	if src == nil {
		return
	}
	if src.IsZero() {
		if *dst != nil {
			*dst = nil
			changes[column] = nil
		}
		return
	}
	if *dst != nil && (*dst).Equal(*src) {
		return
	}
	t := *src
	*dst = &t
	changes[column] = t
}
