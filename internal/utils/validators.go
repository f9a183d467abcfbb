package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// --- Validador de CPF ---

// IsValidCPF verifica se um CPF (apenas dígitos) é válido pelos dígitos verificadores.
func IsValidCPF(cpf string) bool {
	if len(cpf) != 11 || allDigitsEqual(cpf) {
		return false
	}
	for _, r := range cpf {
		if r < '0' || r > '9' {
			return false
		}
	}

	checkDigit := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		rest := (sum * 10) % 11
		if rest == 10 {
			rest = 0
		}
		return rest
	}

	return checkDigit(9) == int(cpf[9]-'0') && checkDigit(10) == int(cpf[10]-'0')
}

// FormatCPF devolve o CPF no formato 000.000.000-00. Entradas inválidas voltam sem alteração.
func FormatCPF(cpf string) string {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return cpf
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

// allDigitsEqual verifica se todos os caracteres em uma string são iguais.
func allDigitsEqual(s string) bool {
	if len(s) < 2 {
		return true
	}
	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

// --- Validador de CEP ---

// IsValidCEP aceita CEPs com ou sem máscara (00000-000).
func IsValidCEP(cep string) bool {
	digits := OnlyDigits(cep)
	return len(digits) == 8 && !allDigitsEqual(digits)
}

// --- Validador de E-mail ---

// ValidateEmail verifica se um e-mail é válido.
// Retorna nil se válido, ou um erro do tipo appErrors.ValidationError.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return appErrors.NewValidationError("E-mail é obrigatório.", map[string]string{"email": "obrigatório"})
	}
	if len(email) > 254 {
		return appErrors.NewValidationError("E-mail excede 254 caracteres.", map[string]string{"email": "muito longo"})
	}

	// Checa se ParseAddress não alterou o email (ex: removendo comentários)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return appErrors.NewValidationError("Formato de e-mail inválido.", map[string]string{"email": "formato inválido"})
	}
	if !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return appErrors.NewValidationError("Domínio de e-mail inválido.", map[string]string{"email": "domínio inválido"})
	}
	return nil
}

// --- Validador de Força de Senha ---

// PasswordStrengthResult contém os resultados da validação de força da senha.
type PasswordStrengthResult struct {
	IsValid           bool `json:"is_valid"`
	Length            bool `json:"length"`
	Uppercase         bool `json:"uppercase"`
	Lowercase         bool `json:"lowercase"`
	Digit             bool `json:"digit"`
	NotCommonPassword bool `json:"not_common_password"` // True se NÃO for comum
	MinLengthRequired int  `json:"min_length_required"`
}

// GetErrorDetailsList retorna uma lista de strings descrevendo as falhas de validação.
func (psr *PasswordStrengthResult) GetErrorDetailsList() []string {
	var details []string
	if psr.IsValid {
		return details
	}
	if !psr.Length {
		details = append(details, fmt.Sprintf("comprimento mínimo de %d caracteres", psr.MinLengthRequired))
	}
	if !psr.Uppercase {
		details = append(details, "letra maiúscula")
	}
	if !psr.Lowercase {
		details = append(details, "letra minúscula")
	}
	if !psr.Digit {
		details = append(details, "número")
	}
	if !psr.NotCommonPassword {
		details = append(details, "senha muito comum")
	}
	return details
}

var commonPasswords = map[string]bool{
	"password": true, "123456": true, "qwerty": true, "admin": true, "welcome": true,
	"senha123": true, "12345678": true, "abc123": true, "password123": true,
	"admin123": true, "111111": true, "123123": true, "gabinete": true, "mudar123": true,
}

// ValidatePasswordStrength verifica a força de uma senha.
func ValidatePasswordStrength(password string, minLength int) PasswordStrengthResult {
	res := PasswordStrengthResult{MinLengthRequired: minLength}
	if password == "" {
		return res
	}

	res.Length = utf8.RuneCountInString(password) >= minLength
	res.NotCommonPassword = !commonPasswords[strings.ToLower(password)]
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			res.Uppercase = true
		case unicode.IsLower(char):
			res.Lowercase = true
		case unicode.IsDigit(char):
			res.Digit = true
		}
	}

	res.IsValid = res.Length && res.Uppercase && res.Lowercase && res.Digit && res.NotCommonPassword
	return res
}

// --- Validadores de Telefone ---

var phoneRegex = regexp.MustCompile(`^\d{10,13}$`)

// NormalizePhone devolve apenas os dígitos do telefone, ou "" se o formato for inválido.
// Aceita DDD + número (10 ou 11 dígitos), opcionalmente com DDI 55.
func NormalizePhone(phone string) string {
	digits := OnlyDigits(phone)
	if !phoneRegex.MatchString(digits) {
		return ""
	}
	if len(digits) <= 11 {
		digits = "55" + digits
	}
	return digits
}

// --- Funções de Sanitização ---

// SanitizeInput remove caracteres de controle (exceto espaços comuns) e colapsa espaços.
// Para SQL, use SEMPRE queries parametrizadas.
func SanitizeInput(inputStr string) string {
	if inputStr == "" {
		return ""
	}
	var sb strings.Builder
	lastWasSpace := false
	for _, r := range inputStr {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				sb.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			sb.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// GenerateSecureRandomToken gera um token string seguro (URL-safe).
func GenerateSecureRandomToken(length int) string {
	numBytes := length
	if length < 24 {
		numBytes = 24
	}

	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		appLogger.Errorf("Falha crítica ao gerar bytes aleatórios para token: %v. Usando fallback.", err)
		timestamp := time.Now().UnixNano()
		fallback := fmt.Sprintf("fallback_%x_%x", timestamp, timestamp/int64(length+1))
		if len(fallback) > length {
			return fallback[:length]
		}
		return fallback
	}
	token := strings.ReplaceAll(base64.URLEncoding.EncodeToString(b), "=", "")
	if len(token) > length {
		return token[:length]
	}
	return token
}
