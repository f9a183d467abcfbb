package listview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartas(n int) []carta {
	out := make([]carta, n)
	for i := range out {
		out[i] = carta{ID: fmt.Sprintf("%02d", i+1), Status: "Recebida"}
	}
	return out
}

func TestPaginate(t *testing.T) {
	items := cartas(23)

	p := Paginate(items, 1, 10)
	assert.Equal(t, 10, len(p.Items))
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 23, p.TotalItems)

	p = Paginate(items, 3, 10)
	assert.Equal(t, []string{"21", "22", "23"}, chaves(p.Items))

	p = Paginate(items, 9, 10)
	assert.Equal(t, 3, p.Number)

	p = Paginate(items, 0, 0)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, DefaultPageSize, p.Size)

	p = Paginate([]carta{}, 1, 10)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.TotalPages)
	assert.Equal(t, 1, p.Number)
}

// Concatenar as páginas devolve a lista filtrada, sem duplicatas nem buracos.
func TestPaginateIsStable(t *testing.T) {
	items := Apply(cartas(47), func(c carta) bool { return c.ID[1] != '0' })
	for _, size := range []int{1, 5, 10, 13, 50} {
		first := Paginate(items, 1, size)
		var joined []carta
		for n := 1; n <= first.TotalPages; n++ {
			joined = append(joined, Paginate(items, n, size).Items...)
		}
		assert.Equal(t, chaves(items), chaves(joined), "size %d", size)
	}
}

type fakeRange struct {
	rows    []carta
	calls   int
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeRange) fetch(ctx context.Context, offset, limit int) ([]carta, int64, error) {
	f.calls++
	if f.gate != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-f.gate
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	if offset >= len(f.rows) {
		return nil, int64(len(f.rows)), nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], int64(len(f.rows)), nil
}

func TestLoaderLoadMore(t *testing.T) {
	src := &fakeRange{rows: cartas(25)}
	l := NewLoader[carta](src.fetch, 10)
	ctx := context.Background()

	n, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.True(t, l.HasMore())
	assert.EqualValues(t, 25, l.Total())

	_, err = l.LoadMore(ctx)
	require.NoError(t, err)
	n, err = l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, l.HasMore())
	assert.Equal(t, chaves(src.rows), chaves(l.Items()))

	n, err = l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, src.calls)
}

func TestLoaderSkipsDuplicatesAndHandlesErrors(t *testing.T) {
	src := &fakeRange{rows: cartas(4)}
	l := NewLoader[carta](func(ctx context.Context, offset, limit int) ([]carta, int64, error) {
		// Um registro inserido no topo desloca o lote seguinte.
		rows, total, err := src.fetch(ctx, offset, limit)
		if offset > 0 && err == nil {
			rows = append([]carta{src.rows[offset-1]}, rows...)
		}
		return rows, total, err
	}, 2)
	ctx := context.Background()

	_, err := l.LoadMore(ctx)
	require.NoError(t, err)
	n, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"01", "02", "03", "04"}, chaves(l.Items()))

	failing := &fakeRange{err: errors.New("timeout")}
	l2 := NewLoader[carta](failing.fetch, 2)
	_, err = l2.LoadMore(ctx)
	assert.Error(t, err)
	assert.Error(t, l2.Err())
	assert.True(t, l2.HasMore())
}

func TestLoaderRejectsConcurrentLoadAndResets(t *testing.T) {
	src := &fakeRange{rows: cartas(5), started: make(chan struct{}, 1), gate: make(chan struct{})}
	l := NewLoader[carta](src.fetch, 2)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := l.LoadMore(ctx)
		done <- err
	}()

	<-src.started
	_, err := l.LoadMore(ctx)
	assert.ErrorIs(t, err, ErrLoadInProgress)

	l.Reset()
	close(src.gate)
	require.NoError(t, <-done)
	// O resultado da carga anterior ao Reset é descartado.
	assert.Empty(t, l.Items())
	assert.True(t, l.HasMore())

	n, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoaderResetDuringLoadKeepsNewerLoadBusy(t *testing.T) {
	rows := cartas(30)
	gates := []chan struct{}{make(chan struct{}), make(chan struct{})}
	started := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	fetch := func(ctx context.Context, offset, limit int) ([]carta, int64, error) {
		mu.Lock()
		n := calls
		calls++
		mu.Unlock()
		if n < len(gates) {
			started <- struct{}{}
			<-gates[n]
		}
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		return rows[offset:end], int64(len(rows)), nil
	}
	l := NewLoader[carta](fetch, 10)
	ctx := context.Background()

	antiga := make(chan error, 1)
	go func() {
		_, err := l.LoadMore(ctx)
		antiga <- err
	}()
	<-started
	l.Reset()

	nova := make(chan error, 1)
	go func() {
		_, err := l.LoadMore(ctx)
		nova <- err
	}()
	<-started

	// A carga descartada termina enquanto a nova ainda está em curso.
	close(gates[0])
	require.NoError(t, <-antiga)
	_, err := l.LoadMore(ctx)
	assert.ErrorIs(t, err, ErrLoadInProgress)

	close(gates[1])
	require.NoError(t, <-nova)
	_, err = l.LoadMore(ctx)
	require.NoError(t, err)

	assert.Equal(t, chaves(rows[:20]), chaves(l.Items()))
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}
