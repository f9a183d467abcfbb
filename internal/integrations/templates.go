package integrations

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// templateFile é o formato do catálogo:
//
//	templates:
//	  aniversario: "Olá {{.Nome}}, o gabinete deseja um feliz aniversário!"
type templateFile struct {
	Templates map[string]string `yaml:"templates"`
}

// TemplateCatalog guarda as mensagens de WhatsApp por nome. Os textos usam
// text/template; os campos disponíveis são os de MessageData.
type TemplateCatalog struct {
	templates map[string]*template.Template
}

// MessageData é o contexto de renderização de uma mensagem.
type MessageData struct {
	Nome      string
	Bairro    string
	Cidade    string
	Categoria string
}

// ParseTemplates lê um catálogo em YAML.
func ParseTemplates(data []byte) (*TemplateCatalog, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: catálogo de mensagens inválido: %v", appErrors.ErrConfiguration, err)
	}
	c := &TemplateCatalog{templates: make(map[string]*template.Template, len(f.Templates))}
	for name, text := range f.Templates {
		tpl, err := compileMessage(name, text)
		if err != nil {
			return nil, fmt.Errorf("%w: modelo '%s': %v", appErrors.ErrConfiguration, name, err)
		}
		c.templates[name] = tpl
	}
	return c, nil
}

// LoadTemplates lê o catálogo do arquivo. Arquivo inexistente resulta em
// catálogo vazio (apenas mensagens livres).
func LoadTemplates(path string) (*TemplateCatalog, error) {
	if path == "" {
		return &TemplateCatalog{templates: map[string]*template.Template{}}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		appLogger.Warnf("Catálogo de mensagens '%s' não encontrado. Apenas mensagens livres estarão disponíveis.", path)
		return &TemplateCatalog{templates: map[string]*template.Template{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lendo catálogo de mensagens: %v", appErrors.ErrResourceLoading, err)
	}
	return ParseTemplates(data)
}

// Names devolve os nomes dos modelos em ordem alfabética.
func (c *TemplateCatalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup devolve o modelo pelo nome.
func (c *TemplateCatalog) Lookup(name string) (*template.Template, error) {
	tpl, ok := c.templates[name]
	if !ok {
		return nil, appErrors.NewValidationError("Modelo de mensagem desconhecido.", map[string]string{"modelo": fmt.Sprintf("'%s' não existe", name)})
	}
	return tpl, nil
}

// CompileMessage compila um texto livre com a mesma sintaxe dos modelos.
func CompileMessage(text string) (*template.Template, error) {
	tpl, err := compileMessage("mensagem", text)
	if err != nil {
		return nil, appErrors.NewValidationError("Mensagem inválida.", map[string]string{"mensagem": err.Error()})
	}
	return tpl, nil
}

func compileMessage(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("texto vazio")
	}
	return template.New(name).Option("missingkey=error").Parse(text)
}

// Render aplica o modelo aos dados.
func Render(tpl *template.Template, data MessageData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: renderizando mensagem: %v", appErrors.ErrInvalidInput, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
