package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// DataInput abstrai a fonte dos dados de exportação (uma planilha).
type DataInput interface {
	Headers() []string
	Rows() [][]string
	GetSheetName() string
}

// Column descreve uma coluna de exportação para registros do tipo T.
type Column[T any] struct {
	Header string
	Value  func(T) string
}

// TableDataInput monta as linhas a partir de registros tipados e de uma lista de colunas.
type TableDataInput[T any] struct {
	items     []T
	columns   []Column[T]
	sheetName string
}

// NewTableDataInput cria um DataInput para os registros informados.
func NewTableDataInput[T any](items []T, columns []Column[T], sheetName string) *TableDataInput[T] {
	if sheetName == "" {
		sheetName = "Dados"
	}
	return &TableDataInput[T]{items: items, columns: columns, sheetName: sheetName}
}

func (t *TableDataInput[T]) Headers() []string {
	headers := make([]string, len(t.columns))
	for i, c := range t.columns {
		headers[i] = c.Header
	}
	return headers
}

func (t *TableDataInput[T]) Rows() [][]string {
	rows := make([][]string, len(t.items))
	for i, item := range t.items {
		row := make([]string, len(t.columns))
		for j, c := range t.columns {
			row[j] = c.Value(item)
		}
		rows[i] = row
	}
	return rows
}

func (t *TableDataInput[T]) GetSheetName() string { return t.sheetName }

// --- Sanitização ---
var (
	cpfRegex   = regexp.MustCompile(`\b(\d{3}[.-]?\d{3}[.-]?\d{3}-?\d{2})\b`)
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

func sanitizeString(s string) string {
	s = cpfRegex.ReplaceAllString(s, "***.***.***-**")
	s = emailRegex.ReplaceAllString(s, "****@****.***")
	return s
}

func sanitizeData(headers []string, rows [][]string, sanitizeColumns []string) [][]string {
	if len(sanitizeColumns) == 0 || len(rows) == 0 {
		return rows
	}

	colIndicesToSanitize := make(map[int]bool)
	for _, colName := range sanitizeColumns {
		found := false
		for i, h := range headers {
			if strings.EqualFold(h, colName) {
				colIndicesToSanitize[i] = true
				found = true
				break
			}
		}
		if !found {
			appLogger.Warnf("Coluna de sanitização '%s' não encontrada nos cabeçalhos. Ignorando.", colName)
		}
	}
	if len(colIndicesToSanitize) == 0 {
		return rows
	}

	sanitizedRows := make([][]string, len(rows))
	for i, row := range rows {
		newRow := make([]string, len(row))
		copy(newRow, row)
		for colIdx := range row {
			if colIndicesToSanitize[colIdx] {
				newRow[colIdx] = sanitizeString(row[colIdx])
			}
		}
		sanitizedRows[i] = newRow
	}
	return sanitizedRows
}

// ExportOptions contém opções para a exportação.
type ExportOptions struct {
	CreateBackup    bool
	Sanitize        bool
	SanitizeColumns []string           // Nomes das colunas a serem sanitizadas (CPF, e-mail)
	ColumnWidths    map[string]float64 // map[cabeçalho]largura (apenas XLSX)
}

// WriteCSV escreve uma planilha em CSV (delimitador ';') no writer informado.
func WriteCSV(w io.Writer, input DataInput, opts *ExportOptions) error {
	if opts == nil {
		opts = &ExportOptions{}
	}
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	headers := input.Headers()
	if err := writer.Write(headers); err != nil {
		return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao escrever cabeçalhos CSV: %v", err)
	}
	rows := input.Rows()
	if opts.Sanitize {
		rows = sanitizeData(headers, rows, opts.SanitizeColumns)
	}
	if err := writer.WriteAll(rows); err != nil {
		return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao escrever linhas CSV: %v", err)
	}
	return nil
}

// WriteXLSX gera uma pasta de trabalho com uma planilha por DataInput e a escreve no writer.
func WriteXLSX(w io.Writer, inputs []DataInput, opts *ExportOptions) error {
	if opts == nil {
		opts = &ExportOptions{}
	}

	xlsx := excelize.NewFile()
	defer func() {
		if err := xlsx.Close(); err != nil {
			appLogger.Errorf("Erro ao fechar arquivo XLSX: %v", err)
		}
	}()

	headerStyle, err := xlsx.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1A659E"}, Pattern: 1},
		Font:      &excelize.Font{Color: "FFFFFF", Bold: true, Size: 11, Family: "Segoe UI"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "bottom", Color: "FFFFFF", Style: 1},
		},
	})
	if err != nil {
		return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao criar estilo do cabeçalho: %v", err)
	}

	if len(inputs) == 0 {
		_ = xlsx.SetCellValue("Sheet1", "A1", "Nenhum dado para exportar.")
	}

	for i, input := range inputs {
		sheetName := input.GetSheetName()
		if sheetName == "" {
			sheetName = fmt.Sprintf("Planilha%d", i+1)
		}
		// Excelize cria "Sheet1" por padrão; a primeira planilha reaproveita essa aba.
		if i == 0 {
			if err := xlsx.SetSheetName("Sheet1", sheetName); err != nil {
				return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao renomear planilha '%s': %v", sheetName, err)
			}
		} else if _, err := xlsx.NewSheet(sheetName); err != nil {
			return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao criar planilha '%s': %v", sheetName, err)
		}

		headers := input.Headers()
		for colIdx, headerVal := range headers {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
			_ = xlsx.SetCellValue(sheetName, cell, headerVal)
			_ = xlsx.SetCellStyle(sheetName, cell, cell, headerStyle)
			if width, ok := opts.ColumnWidths[headerVal]; ok {
				colLetter, _ := excelize.ColumnNumberToName(colIdx + 1)
				_ = xlsx.SetColWidth(sheetName, colLetter, colLetter, width)
			}
		}

		rows := input.Rows()
		if opts.Sanitize {
			rows = sanitizeData(headers, rows, opts.SanitizeColumns)
		}
		for rowIdx, rowData := range rows {
			// Linha 1 é o cabeçalho. Valores ficam como texto para não perder zeros à esquerda (CPF, CEP).
			cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
			values := make([]interface{}, len(rowData))
			for j, v := range rowData {
				values[j] = v
			}
			if err := xlsx.SetSheetRow(sheetName, cell, &values); err != nil {
				return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao escrever linha %d: %v", rowIdx+2, err)
			}
		}
	}
	xlsx.SetActiveSheet(0)

	if _, err := xlsx.WriteTo(w); err != nil {
		return appErrors.WrapErrorf(appErrors.ErrExport, "falha ao gravar XLSX: %v", err)
	}
	return nil
}

// ExportToXLSX grava o XLSX em disco, dentro de exportDir quando o caminho for relativo.
func ExportToXLSX(inputs []DataInput, outputPath, exportDir string, opts *ExportOptions) (string, error) {
	finalPath := resolveOutputPath(outputPath, exportDir, ".xlsx")
	if opts != nil && opts.CreateBackup && fileExists(finalPath) {
		if err := createBackup(finalPath); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao criar backup para XLSX")
		}
	}

	file, err := os.Create(finalPath)
	if err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao criar arquivo XLSX '%s'", finalPath)
	}
	defer file.Close()

	if err := WriteXLSX(file, inputs, opts); err != nil {
		return "", err
	}
	appLogger.Infof("Dados exportados para XLSX: %s", finalPath)
	return finalPath, nil
}

// ExportToCSV grava o CSV em disco, dentro de exportDir quando o caminho for relativo.
func ExportToCSV(input DataInput, outputPath, exportDir string, opts *ExportOptions) (string, error) {
	finalPath := resolveOutputPath(outputPath, exportDir, ".csv")
	if opts != nil && opts.CreateBackup && fileExists(finalPath) {
		if err := createBackup(finalPath); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao criar backup para CSV")
		}
	}

	file, err := os.Create(finalPath)
	if err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao criar arquivo CSV '%s'", finalPath)
	}
	defer file.Close()

	if err := WriteCSV(file, input, opts); err != nil {
		return "", err
	}
	appLogger.Infof("Dados exportados para CSV: %s", finalPath)
	return finalPath, nil
}

// --- Funções Utilitárias Internas ---
func resolveOutputPath(path string, defaultDir string, defaultExt string) string {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		absDefaultDir, _ := filepath.Abs(defaultDir)
		p = filepath.Join(absDefaultDir, p)
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		appLogger.Warnf("Não foi possível criar diretório de exportação '%s': %v. Usando diretório atual.", dir, err)
		p = filepath.Base(p)
	}

	if filepath.Ext(p) == "" {
		p += defaultExt
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func createBackup(path string) error {
	timestamp := time.Now().Format("20060102_150405")
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	backupPath := fmt.Sprintf("%s_backup_%s%s", base, timestamp, ext)

	err := os.Rename(path, backupPath)
	if err == nil {
		appLogger.Infof("Backup criado: %s", backupPath)
	}
	return err
}
