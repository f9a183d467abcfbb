package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type linha struct {
	Nome  string
	CPF   string
	Email string
}

func colunas() []Column[linha] {
	return []Column[linha]{
		{Header: "Nome", Value: func(l linha) string { return l.Nome }},
		{Header: "CPF", Value: func(l linha) string { return l.CPF }},
		{Header: "E-mail", Value: func(l linha) string { return l.Email }},
	}
}

func TestWriteCSVSanitize(t *testing.T) {
	input := NewTableDataInput([]linha{
		{Nome: "Maria", CPF: "529.982.247-25", Email: "maria@exemplo.com.br"},
	}, colunas(), "Eleitores")

	var buf bytes.Buffer
	err := WriteCSV(&buf, input, &ExportOptions{Sanitize: true, SanitizeColumns: []string{"cpf", "e-mail"}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Nome;CPF;E-mail", lines[0])
	assert.Equal(t, "Maria;***.***.***-**;****@****.***", lines[1])
}

func TestWriteXLSXKeepsLeadingZeros(t *testing.T) {
	input := NewTableDataInput([]linha{{Nome: "João", CPF: "01234567890"}}, colunas(), "Eleitores")

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []DataInput{input}, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Eleitores"}, f.GetSheetList())
	v, err := f.GetCellValue("Eleitores", "B2")
	require.NoError(t, err)
	assert.Equal(t, "01234567890", v)
}

func TestExportToXLSXWritesFile(t *testing.T) {
	dir := t.TempDir()
	data := NewTableDataInput([]linha{{Nome: "Maria", CPF: "52998224725"}}, colunas(), "Eleitores")

	path, err := ExportToXLSX([]DataInput{data}, "relatorio", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "relatorio.xlsx"), path)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestExportToCSVKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	data := NewTableDataInput([]linha{{Nome: "Maria"}}, colunas(), "Eleitores")
	opts := &ExportOptions{CreateBackup: true}

	path, err := ExportToCSV(data, "eleitores.csv", dir, opts)
	require.NoError(t, err)
	_, err = ExportToCSV(data, "eleitores.csv", dir, opts)
	require.NoError(t, err)

	backups, err := filepath.Glob(filepath.Join(dir, "eleitores_backup_*.csv"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
	assert.FileExists(t, path)
}
