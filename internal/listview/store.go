// Package listview mantém listas de registros de um tenant sincronizadas com o
// banco: cache local ordenado (Store), ouvinte do feed de alterações (Sync),
// filtros puros (Apply) e paginação (Paginate, Loader).
package listview

import "sync"

// Keyed é implementado pelos registros armazenados: Key identifica o registro.
type Keyed interface {
	Key() string
}

// InsertPosition define onde registros novos entram na lista.
type InsertPosition int

const (
	Prepend InsertPosition = iota // mais recentes primeiro
	Append
)

// Store é uma coleção ordenada de registros indexada pela chave.
// É seguro para uso concorrente.
type Store[T Keyed] struct {
	mu       sync.RWMutex
	order    []string
	records  map[string]T
	position InsertPosition
	version  uint64
}

// NewStore cria um Store vazio.
func NewStore[T Keyed](position InsertPosition) *Store[T] {
	return &Store[T]{records: make(map[string]T), position: position}
}

// Replace substitui todo o conteúdo (carga inicial). Chaves repetidas mantêm a primeira ocorrência.
func (s *Store[T]) Replace(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, len(items))
	s.records = make(map[string]T, len(items))
	for _, item := range items {
		k := item.Key()
		if _, dup := s.records[k]; dup {
			continue
		}
		s.records[k] = item
		s.order = append(s.order, k)
	}
	s.version++
}

// Insert adiciona o registro se a chave ainda não existir. Devolve false quando já existia.
func (s *Store[T]) Insert(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(item)
}

func (s *Store[T]) insertLocked(item T) bool {
	k := item.Key()
	if _, ok := s.records[k]; ok {
		return false
	}
	s.records[k] = item
	if s.position == Prepend {
		s.order = append(s.order, "")
		copy(s.order[1:], s.order)
		s.order[0] = k
	} else {
		s.order = append(s.order, k)
	}
	s.version++
	return true
}

// Upsert substitui o registro de mesma chave mantendo sua posição, ou o insere.
// Devolve true quando inseriu.
func (s *Store[T]) Upsert(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := item.Key()
	if _, ok := s.records[k]; ok {
		s.records[k] = item
		s.version++
		return false
	}
	return s.insertLocked(item)
}

// Modify lê e substitui atomicamente o registro da chave. fn recebe o valor
// atual (e se existe); se devolver erro, nada muda. A chave do resultado deve
// ser a mesma.
func (s *Store[T]) Modify(key string, fn func(current T, exists bool) (T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	if exists {
		s.records[key] = next
		s.version++
		return nil
	}
	s.insertLocked(next)
	return nil
}

// Remove exclui o registro da chave. Devolve false se não existia.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	return true
}

// Get devolve o registro da chave.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.records[key]
	return item, ok
}

// Snapshot devolve uma cópia dos registros na ordem atual.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.records[k])
	}
	return out
}

// Keys devolve as chaves na ordem atual.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version aumenta a cada alteração; serve para detectar mudanças entre leituras.
func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
