package realtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
)

// DefaultSubscriberBuffer é o tamanho da fila por assinatura quando não configurado.
const DefaultSubscriberBuffer = 256

var (
	// ErrFeedClosed é devolvido por Subscribe depois de Close.
	ErrFeedClosed = fmt.Errorf("%w: feed encerrado", appErrors.ErrSubscription)
	// ErrSlowConsumer derruba assinaturas cuja fila encheu.
	ErrSlowConsumer = fmt.Errorf("%w: fila da assinatura cheia", appErrors.ErrSubscription)
)

// Broker é um Feed em processo. Cada assinatura tem sua fila e sua goroutine de
// entrega, então eventos de uma assinatura chegam em ordem de publicação.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*brokerSub
	buffer int
	closed bool
	wg     sync.WaitGroup
	log    *logrus.Entry
}

// NewBroker cria um Broker com a fila por assinatura indicada (<= 0 usa o padrão).
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broker{
		subs:   make(map[string]*brokerSub),
		buffer: buffer,
		log:    appLogger.WithFields(logrus.Fields{"component": "realtime.broker"}),
	}
}

type brokerSub struct {
	id       string
	table    string
	filter   Filter
	onEvent  Handler
	onStatus StatusHandler
	queue    chan ChangeEvent
	done     chan struct{}
	once     sync.Once
	broker   *Broker

	// final é emitido ao encerrar; vazio em Unsubscribe explícito.
	final    Status
	finalErr error
}

func (s *brokerSub) ID() string { return s.id }

func (s *brokerSub) Unsubscribe() {
	s.broker.remove(s.id)
	s.terminate("", nil)
}

func (s *brokerSub) terminate(status Status, err error) {
	s.once.Do(func() {
		s.final, s.finalErr = status, err
		close(s.done)
	})
}

func (s *brokerSub) run() {
	defer s.broker.wg.Done()
	s.notify(StatusSubscribed, nil)
	for {
		// done tem prioridade: após o encerramento nenhum evento é entregue.
		select {
		case <-s.done:
			s.notify(s.final, s.finalErr)
			return
		default:
		}
		select {
		case ev := <-s.queue:
			s.onEvent(ev)
		case <-s.done:
			s.notify(s.final, s.finalErr)
			return
		}
	}
}

func (s *brokerSub) notify(status Status, err error) {
	if status == "" || s.onStatus == nil {
		return
	}
	s.onStatus(status, err)
}

// Subscribe abre uma assinatura. SUBSCRIBED é entregue de forma assíncrona,
// antes de qualquer evento.
func (b *Broker) Subscribe(table string, filter Filter, onEvent Handler, onStatus StatusHandler) (Subscription, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: tabela obrigatória para assinar", appErrors.ErrInvalidInput)
	}
	if onEvent == nil {
		return nil, errors.New("realtime: handler de eventos nil")
	}
	s := &brokerSub{
		id:       uuid.NewString(),
		table:    table,
		filter:   filter,
		onEvent:  onEvent,
		onStatus: onStatus,
		queue:    make(chan ChangeEvent, b.buffer),
		done:     make(chan struct{}),
		broker:   b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrFeedClosed
	}
	b.subs[s.id] = s
	b.wg.Add(1)
	b.mu.Unlock()

	go s.run()
	b.log.WithFields(logrus.Fields{"subscription": s.id, "table": table, "filter": filter.String()}).Debug("Assinatura aberta")
	return s, nil
}

// Publish entrega o evento às assinaturas da tabela cujo filtro aceita a linha.
// Assinaturas com fila cheia são derrubadas com CHANNEL_ERROR.
func (b *Broker) Publish(ev ChangeEvent) {
	var overflow []*brokerSub

	b.mu.RLock()
	for _, s := range b.subs {
		if s.table != ev.Table || !s.filter.Matches(ev) {
			continue
		}
		select {
		case s.queue <- ev:
		default:
			overflow = append(overflow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range overflow {
		b.log.WithFields(logrus.Fields{"subscription": s.id, "table": s.table}).Warn("Fila da assinatura cheia, derrubando assinatura")
		b.remove(s.id)
		s.terminate(StatusChannelError, ErrSlowConsumer)
	}
}

// DropAll encerra todas as assinaturas abertas com o status informado.
func (b *Broker) DropAll(status Status, err error) {
	b.mu.Lock()
	subs := make([]*brokerSub, 0, len(b.subs))
	for id, s := range b.subs {
		subs = append(subs, s)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.terminate(status, err)
	}
	if len(subs) > 0 {
		b.log.Infof("%d assinatura(s) encerrada(s) com status %s", len(subs), status)
	}
}

// Len devolve o número de assinaturas abertas.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close encerra todas as assinaturas com CLOSED e espera as goroutines de entrega.
// Não deve ser chamado de dentro de um Handler.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.DropAll(StatusClosed, nil)
	b.wg.Wait()
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}
