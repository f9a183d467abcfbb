package services

import (
	"io"
	"strings"
	"time"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

const dataBR = "02/01/2006"

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(dataBR)
}

// OficioColumns são as colunas da planilha de ofícios.
func OficioColumns() []utils.Column[models.Oficio] {
	return []utils.Column[models.Oficio]{
		{Header: "Número", Value: func(o models.Oficio) string { return o.Numero }},
		{Header: "Tipo", Value: func(o models.Oficio) string { return string(o.Tipo) }},
		{Header: "Assunto", Value: func(o models.Oficio) string { return o.Assunto }},
		{Header: "Destinatário", Value: func(o models.Oficio) string { return o.Destinatario }},
		{Header: "Status", Value: func(o models.Oficio) string { return string(o.Status) }},
		{Header: "Urgência", Value: func(o models.Oficio) string { return string(o.Urgencia) }},
		{Header: "Criado em", Value: func(o models.Oficio) string { return formatDate(&o.CreatedAt) }},
		{Header: "Protocolado em", Value: func(o models.Oficio) string { return formatDate(o.ProtocoladoEm) }},
		{Header: "Arquivo", Value: func(o models.Oficio) string { return o.ArquivoURL }},
	}
}

// EleitorColumns são as colunas da planilha de eleitores.
func EleitorColumns() []utils.Column[models.Eleitor] {
	return []utils.Column[models.Eleitor]{
		{Header: "Nome", Value: func(e models.Eleitor) string { return e.Nome }},
		{Header: "CPF", Value: func(e models.Eleitor) string { return utils.FormatCPF(e.CPF) }},
		{Header: "Nascimento", Value: func(e models.Eleitor) string { return formatDate(e.DataNascimento) }},
		{Header: "Telefone", Value: func(e models.Eleitor) string { return e.Telefone }},
		{Header: "WhatsApp", Value: func(e models.Eleitor) string { return e.WhatsApp }},
		{Header: "E-mail", Value: func(e models.Eleitor) string { return e.Email }},
		{Header: "CEP", Value: func(e models.Eleitor) string { return e.CEP }},
		{Header: "Bairro", Value: func(e models.Eleitor) string { return e.Bairro }},
		{Header: "Cidade", Value: func(e models.Eleitor) string { return e.Cidade }},
		{Header: "UF", Value: func(e models.Eleitor) string { return e.UF }},
	}
}

// ExportFormat é o formato de arquivo das exportações.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat aceita "xlsx" (padrão quando vazio) ou "csv".
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", appErrors.NewValidationError("Formato de exportação inválido.", map[string]string{"formato": "use xlsx ou csv"})
}

// ContentType devolve o MIME type do formato.
func (f ExportFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// OficiosInput monta a planilha de ofícios.
func OficiosInput(items []models.Oficio) utils.DataInput {
	return utils.NewTableDataInput(items, OficioColumns(), "Ofícios")
}

// EleitoresInput monta a planilha de eleitores.
func EleitoresInput(items []models.Eleitor) utils.DataInput {
	return utils.NewTableDataInput(items, EleitorColumns(), "Eleitores")
}

// OficioExportOptions ajusta as larguras das colunas longas.
func OficioExportOptions() *utils.ExportOptions {
	return &utils.ExportOptions{ColumnWidths: map[string]float64{"Assunto": 48, "Destinatário": 32}}
}

// EleitorExportOptions mascara CPF e e-mail na planilha.
func EleitorExportOptions() *utils.ExportOptions {
	return &utils.ExportOptions{
		Sanitize:        true,
		SanitizeColumns: []string{"CPF", "E-mail"},
		ColumnWidths:    map[string]float64{"Nome": 40, "E-mail": 32},
	}
}

func writeInput(w io.Writer, format ExportFormat, input utils.DataInput, opts *utils.ExportOptions) error {
	if format == FormatCSV {
		return utils.WriteCSV(w, input, opts)
	}
	return utils.WriteXLSX(w, []utils.DataInput{input}, opts)
}

// WriteOficios escreve os ofícios no formato pedido.
func WriteOficios(w io.Writer, format ExportFormat, items []models.Oficio) error {
	return writeInput(w, format, OficiosInput(items), OficioExportOptions())
}

// WriteEleitores escreve os eleitores no formato pedido, com dados pessoais mascarados.
func WriteEleitores(w io.Writer, format ExportFormat, items []models.Eleitor) error {
	return writeInput(w, format, EleitoresInput(items), EleitorExportOptions())
}
