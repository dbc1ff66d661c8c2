package models

import "strings"

type UploadStatus string

const (
	UploadStatusProcessando UploadStatus = "PROCESSANDO"
	UploadStatusConcluido   UploadStatus = "CONCLUIDO"
	UploadStatusComAlertas  UploadStatus = "COM_ALERTAS"
	UploadStatusCancelado   UploadStatus = "CANCELADO"
)

type ContaStatus string

const (
	ContaStatusAtiva     ContaStatus = "ATIVA"
	ContaStatusNova      ContaStatus = "NOVA"
	ContaStatusArquivada ContaStatus = "ARQUIVADA"
)

type AlertaTipo string

const (
	AlertaTipoSaldoDivergente      AlertaTipo = "SALDO_DIVERGENTE"
	AlertaTipoContaNova            AlertaTipo = "CONTA_NOVA"
	AlertaTipoDadoInconsistente    AlertaTipo = "DADO_INCONSISTENTE"
	AlertaTipoContinuidadeTemporal AlertaTipo = "CONTINUIDADE_TEMPORAL_DIVERGENTE"
)

type AlertaSeveridade string

const (
	AlertaSeveridadeBaixa AlertaSeveridade = "BAIXA"
	AlertaSeveridadeMedia AlertaSeveridade = "MEDIA"
	AlertaSeveridadeAlta  AlertaSeveridade = "ALTA"
)

type AlertaStatus string

const (
	AlertaStatusAberto    AlertaStatus = "ABERTO"
	AlertaStatusEmAnalise AlertaStatus = "EM_ANALISE"
	AlertaStatusResolvido AlertaStatus = "RESOLVIDO"
	AlertaStatusArquivado AlertaStatus = "ARQUIVADO"
)

func (s AlertaStatus) Valid() bool {
	switch s {
	case AlertaStatusAberto, AlertaStatusEmAnalise, AlertaStatusResolvido, AlertaStatusArquivado:
		return true
	}
	return false
}

// CanTransitionTo encodes the reviewer-driven alert state machine.
// ARQUIVADO is reachable from any state: it is raised when the subject
// classification is archived in the catalog.
func (s AlertaStatus) CanTransitionTo(next AlertaStatus) bool {
	if next == AlertaStatusArquivado {
		return true
	}
	switch s {
	case AlertaStatusAberto:
		return next == AlertaStatusEmAnalise || next == AlertaStatusResolvido
	case AlertaStatusEmAnalise:
		return next == AlertaStatusResolvido
	default:
		return false
	}
}

type TipoConta string

const (
	TipoContaAtivo             TipoConta = "ATIVO"
	TipoContaPassivo           TipoConta = "PASSIVO"
	TipoContaPatrimonioLiquido TipoConta = "PATRIMONIO_LIQUIDO"
	TipoContaReceita           TipoConta = "RECEITA"
	TipoContaDespesa           TipoConta = "DESPESA"
	TipoContaOutros            TipoConta = "OUTROS"
)

// ParseTipoConta normalizes the free-form account-type column found in
// accounting exports ("1-Ativo", "Passivo", "4 - Receita", ...) into the
// closed enum. Unknown values fall back to the leading digit of the
// classification code when one is supplied.
func ParseTipoConta(raw string, classificacao string) TipoConta {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "ativo") && !strings.Contains(s, "passivo"):
		return TipoContaAtivo
	case strings.Contains(s, "passivo"):
		return TipoContaPassivo
	case strings.Contains(s, "patrim"):
		return TipoContaPatrimonioLiquido
	case strings.Contains(s, "receita"):
		return TipoContaReceita
	case strings.Contains(s, "despesa"), strings.Contains(s, "custo"):
		return TipoContaDespesa
	}
	if classificacao != "" {
		switch classificacao[0] {
		case '1':
			return TipoContaAtivo
		case '2':
			return TipoContaPassivo
		case '3':
			return TipoContaReceita
		case '4':
			return TipoContaDespesa
		case '5':
			return TipoContaPatrimonioLiquido
		}
	}
	return TipoContaOutros
}
