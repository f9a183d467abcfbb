package models

import (
	"fmt"

	appErrors "github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

// enumSet descreve um conjunto fechado de valores textuais persistidos.
// Variantes de grafia (acentos, caixa, "_" ou "-") são normalizadas para o
// valor canônico; qualquer outra coisa é rejeitada.
type enumSet[T ~string] struct {
	field   string
	values  []T
	aliases map[string]T
}

func newEnumSet[T ~string](field string, values []T, aliases map[string]T) enumSet[T] {
	lookup := make(map[string]T, len(values)+len(aliases))
	for _, v := range values {
		lookup[utils.FoldText(string(v))] = v
	}
	for k, v := range aliases {
		lookup[utils.FoldText(k)] = v
	}
	return enumSet[T]{field: field, values: values, aliases: lookup}
}

func (e enumSet[T]) parse(raw string) (T, error) {
	if v, ok := e.aliases[utils.FoldText(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, appErrors.NewValidationError(
		fmt.Sprintf("Valor inválido para %s: '%s'.", e.field, raw),
		map[string]string{e.field: fmt.Sprintf("deve ser um de %v", e.values)},
	)
}

func (e enumSet[T]) valid(v T) bool {
	for _, known := range e.values {
		if known == v {
			return true
		}
	}
	return false
}

// unmarshalEnum aceita string vazia como valor zero; a obrigatoriedade é checada por Validate.
func unmarshalEnum[T ~string](e enumSet[T], dst *T, text []byte) error {
	if len(text) == 0 {
		*dst = ""
		return nil
	}
	v, err := e.parse(string(text))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// --- Status de Ofício / Requerimento ---

// OficioStatus é o estado de tramitação de um ofício ou requerimento.
type OficioStatus string

const (
	OficioRecebida    OficioStatus = "Recebida"
	OficioEmAndamento OficioStatus = "Em Andamento"
	OficioRespondida  OficioStatus = "Respondida"
	OficioProtocolada OficioStatus = "Protocolada"
	OficioArquivada   OficioStatus = "Arquivada"
)

var oficioStatuses = newEnumSet("status", []OficioStatus{
	OficioRecebida, OficioEmAndamento, OficioRespondida, OficioProtocolada, OficioArquivada,
}, map[string]OficioStatus{
	"recebido":    OficioRecebida,
	"andamento":   OficioEmAndamento,
	"respondido":  OficioRespondida,
	"protocolado": OficioProtocolada,
	"arquivado":   OficioArquivada,
})

// ParseOficioStatus normaliza o texto recebido para um OficioStatus canônico.
func ParseOficioStatus(raw string) (OficioStatus, error) { return oficioStatuses.parse(raw) }

func (s OficioStatus) Valid() bool { return oficioStatuses.valid(s) }

func (s *OficioStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(oficioStatuses, s, text)
}

// OficioStatuses devolve os status na ordem do fluxo.
func OficioStatuses() []OficioStatus {
	return append([]OficioStatus(nil), oficioStatuses.values...)
}

// --- Urgência ---

type Urgencia string

const (
	UrgenciaBaixa   Urgencia = "Baixa"
	UrgenciaNormal  Urgencia = "Normal"
	UrgenciaAlta    Urgencia = "Alta"
	UrgenciaUrgente Urgencia = "Urgente"
)

var urgencias = newEnumSet("urgencia", []Urgencia{
	UrgenciaBaixa, UrgenciaNormal, UrgenciaAlta, UrgenciaUrgente,
}, map[string]Urgencia{
	"media": UrgenciaNormal,
})

func ParseUrgencia(raw string) (Urgencia, error) { return urgencias.parse(raw) }

func (u Urgencia) Valid() bool { return urgencias.valid(u) }

func (u *Urgencia) UnmarshalText(text []byte) error {
	return unmarshalEnum(urgencias, u, text)
}

// --- Tipo de documento ---

// TipoDocumento distingue ofícios de requerimentos, que compartilham a mesma tabela.
type TipoDocumento string

const (
	TipoOficio       TipoDocumento = "oficio"
	TipoRequerimento TipoDocumento = "requerimento"
)

var tiposDocumento = newEnumSet("tipo", []TipoDocumento{TipoOficio, TipoRequerimento}, nil)

func ParseTipoDocumento(raw string) (TipoDocumento, error) { return tiposDocumento.parse(raw) }

func (t TipoDocumento) Valid() bool { return tiposDocumento.valid(t) }

func (t *TipoDocumento) UnmarshalText(text []byte) error {
	return unmarshalEnum(tiposDocumento, t, text)
}

// --- Status de Atendimento ---

type AtendimentoStatus string

const (
	AtendimentoPendente    AtendimentoStatus = "Pendente"
	AtendimentoEmAndamento AtendimentoStatus = "Em Andamento"
	AtendimentoConcluido   AtendimentoStatus = "Concluído"
	AtendimentoCancelado   AtendimentoStatus = "Cancelado"
)

var atendimentoStatuses = newEnumSet("status", []AtendimentoStatus{
	AtendimentoPendente, AtendimentoEmAndamento, AtendimentoConcluido, AtendimentoCancelado,
}, map[string]AtendimentoStatus{
	"andamento": AtendimentoEmAndamento,
	"concluida": AtendimentoConcluido,
	"cancelada": AtendimentoCancelado,
})

func ParseAtendimentoStatus(raw string) (AtendimentoStatus, error) {
	return atendimentoStatuses.parse(raw)
}

func (s AtendimentoStatus) Valid() bool { return atendimentoStatuses.valid(s) }

func (s *AtendimentoStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(atendimentoStatuses, s, text)
}

// --- Status de instância WhatsApp ---

type WhatsAppStatus string

const (
	WhatsAppConectado    WhatsAppStatus = "conectado"
	WhatsAppDesconectado WhatsAppStatus = "desconectado"
	WhatsAppAguardandoQR WhatsAppStatus = "aguardando_qr"
)

var whatsAppStatuses = newEnumSet("status", []WhatsAppStatus{
	WhatsAppConectado, WhatsAppDesconectado, WhatsAppAguardandoQR,
}, map[string]WhatsAppStatus{
	"connected":    WhatsAppConectado,
	"disconnected": WhatsAppDesconectado,
	"qrcode":       WhatsAppAguardandoQR,
})

func ParseWhatsAppStatus(raw string) (WhatsAppStatus, error) { return whatsAppStatuses.parse(raw) }

func (s WhatsAppStatus) Valid() bool { return whatsAppStatuses.valid(s) }

func (s *WhatsAppStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(whatsAppStatuses, s, text)
}
