package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
)

func TestUploadAndPublicURL(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)
	ctx := context.Background()

	key, err := l.Upload(ctx, BucketOficios, "empresa/001 2024.pdf", strings.NewReader("conteudo"))
	require.NoError(t, err)
	assert.Equal(t, "oficios/empresa/001 2024.pdf", key)

	data, err := os.ReadFile(filepath.Join(l.Root(), "oficios", "empresa", "001 2024.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "conteudo", string(data))

	// Sobrescreve.
	_, err = l.Upload(ctx, BucketOficios, "empresa/001 2024.pdf", strings.NewReader("novo"))
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(l.Root(), "oficios", "empresa", "001 2024.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "novo", string(data))

	u, err := l.PublicURL(BucketOficios, "empresa/001 2024.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/oficios/empresa/001%202024.pdf", u)
}

func TestRejectsPathTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://x")
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"../fora.txt", "a/../../fora.txt", "/etc/passwd", `..\fora.txt`, "", "."} {
		_, err := l.Upload(ctx, BucketOficios, p, strings.NewReader("x"))
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput, p)
	}
	for _, b := range []string{"", "..", "a/b"} {
		_, err := l.PublicURL(b, "arquivo.pdf")
		assert.ErrorIs(t, err, appErrors.ErrInvalidInput, b)
	}
}

func TestUploadHonorsCanceledContext(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://x")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Upload(ctx, BucketAvatars, "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
