package workflow_test

import (
	"testing"

	"github.com/datafocusbr/balancete_backend/models"
	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/shopspring/decimal"
)

func hashLine(t *testing.T, mutate func(*models.LedgerLine)) string {
	t.Helper()
	line := &models.LedgerLine{
		UploadId:      "up-1",
		Classificacao: "1.1.01",
		Conta:         "1001",
		SubConta:      "01",
		SaldoAnterior: decimal.NewFromInt(100),
		Debito:        decimal.NewFromInt(50),
		Credito:       decimal.NewFromInt(25),
		SaldoAtual:    decimal.NewFromInt(125),
	}
	if mutate != nil {
		mutate(line)
	}
	return workflow.HashLine(line)
}

func TestHashLine_DeterministicAndScaleInsensitive(t *testing.T) {
	base := hashLine(t, nil)
	if again := hashLine(t, nil); again != base {
		t.Fatal("hash must be deterministic")
	}
	// 100 and 100.00 carry the same value at different decimal scales.
	rescaled := hashLine(t, func(l *models.LedgerLine) {
		l.SaldoAnterior = decimal.RequireFromString("100.00")
	})
	if rescaled != base {
		t.Fatal("equal values at different scales must hash identically")
	}
	// Presentation fields are not part of the identity.
	renamed := hashLine(t, func(l *models.LedgerLine) {
		l.NomeConta = "Outro Nome"
		l.RowIndex = 42
	})
	if renamed != base {
		t.Fatal("nomeConta/rowIndex must not affect the hash")
	}
}

func TestHashLine_SensitiveToBusinessFields(t *testing.T) {
	base := hashLine(t, nil)
	for name, mutate := range map[string]func(*models.LedgerLine){
		"uploadId":   func(l *models.LedgerLine) { l.UploadId = "up-2" },
		"conta":      func(l *models.LedgerLine) { l.Conta = "1002" },
		"subConta":   func(l *models.LedgerLine) { l.SubConta = "02" },
		"saldoAtual": func(l *models.LedgerLine) { l.SaldoAtual = decimal.NewFromInt(126) },
	} {
		if hashLine(t, mutate) == base {
			t.Errorf("changing %s must change the hash", name)
		}
	}
}
