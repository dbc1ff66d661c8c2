package workflow

import (
	"github.com/datafocusbr/balancete_backend/models"
	"github.com/shopspring/decimal"
)

// balanceEpsilon absorbs rounding noise from upstream spreadsheet formulas.
// Absolute, in reporting-currency units.
var balanceEpsilon = decimal.New(1, -2) // 0.01

// Divergence is a normal finding, not an error: it is routed to the alert
// engine and never blocks persistence of the line itself.
type Divergence struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Delta    decimal.Decimal
}

// CheckBalance validates the balance-continuity equation
// saldoAnterior + debito - credito == saldoAtual within epsilon. The
// equation is uniform across account types: sign inversion for
// contra-accounts is expected to already be reflected upstream in how
// debito/credito were populated.
func CheckBalance(line *models.LedgerLine) *Divergence {
	expected := line.SaldoAnterior.Add(line.Debito).Sub(line.Credito)
	delta := line.SaldoAtual.Sub(expected).Abs()
	if delta.LessThanOrEqual(balanceEpsilon) {
		return nil
	}
	return &Divergence{Expected: expected, Actual: line.SaldoAtual, Delta: delta}
}

// CheckContinuity compares the previous period's closing balance against this
// period's opening balance for the same account line. A divergence means the
// earlier period was adjusted retroactively after its export.
func CheckContinuity(line *models.LedgerLine, prevClosing decimal.Decimal) *Divergence {
	delta := line.SaldoAnterior.Sub(prevClosing).Abs()
	if delta.LessThanOrEqual(balanceEpsilon) {
		return nil
	}
	return &Divergence{Expected: prevClosing, Actual: line.SaldoAnterior, Delta: delta}
}
