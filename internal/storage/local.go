// Package storage guarda os arquivos anexados (ofícios digitalizados, avatares)
// em buckets dentro de um diretório local, servidos por URL pública.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// Buckets usados pela aplicação.
const (
	BucketOficios = "oficios"
	BucketAvatars = "avatars"
)

// Local implementa o armazenamento em disco: <root>/<bucket>/<caminho>.
type Local struct {
	root      string
	publicURL string
}

// NewLocal cria o armazenamento, garantindo que root exista.
func NewLocal(root, publicURL string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: diretório de armazenamento '%s': %v", appErrors.ErrConfiguration, root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: criando '%s': %v", appErrors.ErrStorage, abs, err)
	}
	return &Local{root: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root devolve o diretório base (servido em /files/).
func (l *Local) Root() string { return l.root }

// Upload grava o conteúdo em bucket/objectPath, substituindo arquivo existente,
// e devolve o caminho relativo do objeto ("bucket/caminho").
func (l *Local) Upload(ctx context.Context, bucket, objectPath string, r io.Reader) (string, error) {
	key, full, err := l.resolve(bucket, objectPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: gravando '%s': %v", appErrors.ErrStorage, key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrStorage, err)
	}
	appLogger.Infof("Arquivo armazenado: %s", key)
	return key, nil
}

// PublicURL devolve a URL pública do objeto.
func (l *Local) PublicURL(bucket, objectPath string) (string, error) {
	key, _, err := l.resolve(bucket, objectPath)
	if err != nil {
		return "", err
	}
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.publicURL + "/" + strings.Join(segments, "/"), nil
}

// resolve valida bucket e caminho, rejeitando caminhos absolutos ou que saiam do bucket.
func (l *Local) resolve(bucket, objectPath string) (string, string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\.`) {
		return "", "", fmt.Errorf("%w: bucket inválido '%s'", appErrors.ErrInvalidInput, bucket)
	}
	p := strings.ReplaceAll(objectPath, `\`, "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", "", fmt.Errorf("%w: caminho inválido '%s'", appErrors.ErrInvalidInput, objectPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", "", fmt.Errorf("%w: caminho inválido '%s'", appErrors.ErrInvalidInput, objectPath)
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", "", fmt.Errorf("%w: caminho inválido '%s'", appErrors.ErrInvalidInput, objectPath)
	}
	key := bucket + "/" + clean
	return key, filepath.Join(l.root, filepath.FromSlash(key)), nil
}
