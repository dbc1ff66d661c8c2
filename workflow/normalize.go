package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/shopspring/decimal"
)

// RawRow is one spreadsheet row after column mapping: logical field name ->
// cell text. Rows arrive already mapped by the importer (or any other
// column-mapping collaborator).
type RawRow map[string]string

const (
	FieldClassificacao = "classificacao"
	FieldConta         = "conta"
	FieldSubConta      = "subConta"
	FieldNomeConta     = "nomeConta"
	FieldTipoConta     = "tipoConta"
	FieldNivel         = "nivel"
	FieldSaldoAnterior = "saldoAnterior"
	FieldDebito        = "debito"
	FieldCredito       = "credito"
	FieldSaldoAtual    = "saldoAtual"
)

var totalsMarkers = map[string]bool{
	"TOTAL":       true,
	"TOTAIS":      true,
	"TOTAL GERAL": true,
}

var nivelPrefix = regexp.MustCompile(`^(\d+)`)

// NormalizeRow converts one mapped row into a LedgerLine candidate. It is
// stateless per row, so a batch can be restarted from any point.
//
// Returns ErrTotalsRow for a reserved totals marker and *MalformedLineError
// when the row cannot be coerced; neither aborts the batch.
func NormalizeRow(row RawRow, index int) (*models.LedgerLine, error) {
	classificacao := strings.TrimSpace(row[FieldClassificacao])
	if classificacao == "" {
		return nil, &MalformedLineError{Index: index, Reason: "classificacao ausente"}
	}
	if totalsMarkers[strings.ToUpper(classificacao)] {
		return nil, ErrTotalsRow
	}

	line := &models.LedgerLine{
		Classificacao: classificacao,
		Conta:         strings.TrimSpace(row[FieldConta]),
		SubConta:      strings.TrimSpace(row[FieldSubConta]),
		NomeConta:     strings.TrimSpace(row[FieldNomeConta]),
		TipoConta:     models.ParseTipoConta(row[FieldTipoConta], classificacao),
		Nivel:         parseNivel(row[FieldNivel], classificacao),
		RowIndex:      index,
	}

	for _, f := range [...]struct {
		name string
		dst  *decimal.Decimal
	}{
		{FieldSaldoAnterior, &line.SaldoAnterior},
		{FieldDebito, &line.Debito},
		{FieldCredito, &line.Credito},
		{FieldSaldoAtual, &line.SaldoAtual},
	} {
		v, err := ParseValor(row[f.name])
		if err != nil {
			return nil, &MalformedLineError{Index: index, Reason: f.name + ": " + err.Error()}
		}
		*f.dst = v
	}

	return line, nil
}

// ParseValor coerces a numeric cell to a decimal. Blank cells normalize to
// zero. Both pt-BR ("1.234,56") and plain ("1234.56") renderings are
// accepted: whichever separator occurs last is the decimal separator, the
// other is a thousands separator.
func ParseValor(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	s = strings.ReplaceAll(s, " ", "")

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
	}

	return decimal.NewFromString(s)
}

// parseNivel accepts "2" as well as the "2-Sim"/"2-Não" form some exports
// use, falling back to the classification's depth.
func parseNivel(s string, classificacao string) int {
	s = strings.TrimSpace(s)
	if m := nivelPrefix.FindString(s); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return strings.Count(classificacao, ".") + 1
}
