package workflow_test

import (
	"errors"
	"testing"

	"github.com/datafocusbr/balancete_backend/workflow"
)

func TestParseValor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"   ", "0"},
		{"1234,56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1.234.567,89", "1234567.89"},
		{"1234.56", "1234.56"},
		{"1,234,567.89", "1234567.89"},
		{"-1.234,56", "-1234.56"},
		{"R$ 1.234,56", "1234.56"},
		{"1000", "1000"},
	}
	for _, tc := range cases {
		got, err := workflow.ParseValor(tc.in)
		if err != nil {
			t.Fatalf("ParseValor(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Errorf("ParseValor(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	if _, err := workflow.ParseValor("abc"); err == nil {
		t.Error("ParseValor(abc) should fail")
	}
}

func TestNormalizeRow_MissingClassificacao(t *testing.T) {
	_, err := workflow.NormalizeRow(workflow.RawRow{
		workflow.FieldSaldoAtual: "10,00",
	}, 7)
	var malformed *workflow.MalformedLineError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedLineError, got %v", err)
	}
	if malformed.Index != 7 {
		t.Fatalf("expected index 7, got %d", malformed.Index)
	}
}

func TestNormalizeRow_TotalsMarker(t *testing.T) {
	for _, marker := range []string{"TOTAL", "total", "Totais", "TOTAL GERAL"} {
		_, err := workflow.NormalizeRow(workflow.RawRow{
			workflow.FieldClassificacao: marker,
		}, 0)
		if !errors.Is(err, workflow.ErrTotalsRow) {
			t.Errorf("%q: expected ErrTotalsRow, got %v", marker, err)
		}
	}
}

func TestNormalizeRow_BlankAmountsAreZero(t *testing.T) {
	line, err := workflow.NormalizeRow(workflow.RawRow{
		workflow.FieldClassificacao: "1.1.01",
		workflow.FieldNomeConta:     "Caixa",
	}, 0)
	if err != nil {
		t.Fatalf("NormalizeRow: %v", err)
	}
	if !line.SaldoAnterior.IsZero() || !line.Debito.IsZero() || !line.Credito.IsZero() || !line.SaldoAtual.IsZero() {
		t.Fatalf("blank amounts must normalize to zero: %+v", line)
	}
}

func TestNormalizeRow_NivelFallsBackToClassificationDepth(t *testing.T) {
	line, err := workflow.NormalizeRow(workflow.RawRow{
		workflow.FieldClassificacao: "1.1.01.002",
	}, 0)
	if err != nil {
		t.Fatalf("NormalizeRow: %v", err)
	}
	if line.Nivel != 4 {
		t.Fatalf("expected nivel 4 from depth, got %d", line.Nivel)
	}

	line, err = workflow.NormalizeRow(workflow.RawRow{
		workflow.FieldClassificacao: "1.1.01.002",
		workflow.FieldNivel:         "2-Sim",
	}, 0)
	if err != nil {
		t.Fatalf("NormalizeRow: %v", err)
	}
	if line.Nivel != 2 {
		t.Fatalf("expected nivel 2 from column, got %d", line.Nivel)
	}
}
