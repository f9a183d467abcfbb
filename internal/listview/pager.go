package listview

import (
	"context"
	"errors"
	"sync"
)

// DefaultPageSize é usado quando o tamanho pedido é <= 0.
const DefaultPageSize = 10

// Page é uma fatia de uma lista já filtrada.
type Page[T any] struct {
	Items      []T `json:"items"`
	Number     int `json:"page"`
	Size       int `json:"size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Paginate devolve a página number (começando em 1) de items. Páginas fora do
// intervalo são ajustadas para a primeira ou a última.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if number > pages {
		number = pages
	}
	if number < 1 {
		number = 1
	}

	start := (number - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])

	return Page[T]{Items: out, Number: number, Size: size, TotalItems: total, TotalPages: pages}
}

// ErrLoadInProgress é devolvido por LoadMore enquanto outra carga está em curso.
var ErrLoadInProgress = errors.New("listview: carga em andamento")

// RangeFetcher busca limit registros a partir de offset e informa o total no servidor.
type RangeFetcher[T any] func(ctx context.Context, offset, limit int) ([]T, int64, error)

// Loader acumula páginas buscadas no servidor ("carregar mais"). HasMore
// começa verdadeiro e, uma vez falso, só volta com Reset.
type Loader[T Keyed] struct {
	fetch RangeFetcher[T]
	batch int

	mu      sync.Mutex
	items   []T
	seen    map[string]struct{}
	offset  int
	total   int64
	hasMore bool
	loading bool
	gen     uint64
	err     error
}

// NewLoader cria um Loader que busca batch registros por vez.
func NewLoader[T Keyed](fetch RangeFetcher[T], batch int) *Loader[T] {
	if batch <= 0 {
		batch = DefaultPageSize
	}
	return &Loader[T]{fetch: fetch, batch: batch, seen: make(map[string]struct{}), hasMore: true}
}

// LoadMore busca o próximo lote e devolve quantos registros novos entraram.
// Registros com chave já vista são ignorados.
func (l *Loader[T]) LoadMore(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return 0, ErrLoadInProgress
	}
	if !l.hasMore {
		l.mu.Unlock()
		return 0, nil
	}
	l.loading = true
	offset, gen := l.offset, l.gen
	l.mu.Unlock()

	batch, total, err := l.fetch(ctx, offset, l.batch)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		// Reset no meio do caminho: loading já pertence à carga mais nova.
		return 0, nil
	}
	l.loading = false
	l.err = err
	if err != nil {
		return 0, err
	}

	added := 0
	for _, item := range batch {
		k := item.Key()
		if _, dup := l.seen[k]; dup {
			continue
		}
		l.seen[k] = struct{}{}
		l.items = append(l.items, item)
		added++
	}
	l.offset += len(batch)
	l.total = total
	if len(batch) == 0 || int64(l.offset) >= total {
		l.hasMore = false
	}
	return added, nil
}

// Items devolve uma cópia dos registros acumulados.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}

func (l *Loader[T]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Total devolve o total informado pelo servidor na última carga.
func (l *Loader[T]) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Loader[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Reset descarta o acumulado; uma carga em curso tem o resultado ignorado.
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.items = nil
	l.seen = make(map[string]struct{})
	l.offset = 0
	l.total = 0
	l.hasMore = true
	l.loading = false
	l.err = nil
}
