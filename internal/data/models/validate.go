package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validable é implementado pelos tipos enumerados (status, urgência, tipo).
type validable interface {
	Valid() bool
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Erros usam o nome JSON do campo, o mesmo que o cliente envia.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
			return utils.IsValidCPF(fl.Field().String())
		})
		_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			if e, ok := fl.Field().Interface().(validable); ok {
				return e.Valid()
			}
			return false
		})
		validate = v
	})
	return validate
}

// Validate valida uma struct pelas tags `validate` e devolve *core.ValidationError
// com uma mensagem por campo.
func Validate(s interface{}) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %v", appErrors.ErrInvalidInput, err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = describeFieldError(fe)
	}
	return appErrors.NewValidationError("Dados inválidos.", fields)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "obrigatório"
	case "email":
		return "e-mail inválido"
	case "cpf":
		return "CPF inválido"
	case "max":
		return fmt.Sprintf("máximo de %s caracteres", fe.Param())
	case "len":
		return fmt.Sprintf("deve ter %s caracteres", fe.Param())
	case "numeric":
		return "apenas dígitos"
	case "alpha":
		return "apenas letras"
	case "hexcolor":
		return "cor inválida (use #RRGGBB)"
	case "url":
		return "URL inválida"
	case "enum":
		return fmt.Sprintf("valor desconhecido '%v'", fe.Value())
	default:
		return "valor inválido"
	}
}
