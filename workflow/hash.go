package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/datafocusbr/balancete_backend/models"
)

// HashLine fingerprints a line's immutable business fields. The serialization
// is fixed: field order is constant and decimals render with exactly two
// fraction digits, so "1" and "1.0" cannot produce different digests.
// Two lines with equal hash within one upload are the same logical fact.
func HashLine(line *models.LedgerLine) string {
	tuple := strings.Join([]string{
		line.UploadId,
		line.Classificacao,
		line.Conta,
		line.SubConta,
		line.SaldoAnterior.StringFixed(2),
		line.Debito.StringFixed(2),
		line.Credito.StringFixed(2),
		line.SaldoAtual.StringFixed(2),
	}, "|")
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])
}
