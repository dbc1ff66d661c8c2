package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/datafocusbr/balancete_backend/workflow"
	"github.com/xuri/excelize/v2"
)

// headerAliases maps the column names Brazilian accounting systems put on
// trial-balance exports to the logical field they carry. Lookup is done on
// the folded (lowercase, accent-stripped) cell text.
var headerAliases = map[string]string{
	"classificacao":  workflow.FieldClassificacao,
	"classif":        workflow.FieldClassificacao,
	"conta":          workflow.FieldConta,
	"cod conta":      workflow.FieldConta,
	"codigo":         workflow.FieldConta,
	"subconta":       workflow.FieldSubConta,
	"sub conta":      workflow.FieldSubConta,
	"sub-conta":      workflow.FieldSubConta,
	"nome":           workflow.FieldNomeConta,
	"nome da conta":  workflow.FieldNomeConta,
	"descricao":      workflow.FieldNomeConta,
	"historico":      workflow.FieldNomeConta,
	"tipo":           workflow.FieldTipoConta,
	"tipo conta":     workflow.FieldTipoConta,
	"tipo de conta":  workflow.FieldTipoConta,
	"natureza":       workflow.FieldTipoConta,
	"nivel":          workflow.FieldNivel,
	"saldo anterior": workflow.FieldSaldoAnterior,
	"saldo inicial":  workflow.FieldSaldoAnterior,
	"debito":         workflow.FieldDebito,
	"debitos":        workflow.FieldDebito,
	"credito":        workflow.FieldCredito,
	"creditos":       workflow.FieldCredito,
	"saldo atual":    workflow.FieldSaldoAtual,
	"saldo final":    workflow.FieldSaldoAtual,
}

// headerScanLimit bounds how deep into the sheet the header row may sit;
// exports commonly put a report title and the period above it.
const headerScanLimit = 10

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "õ", "o", "ô", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
	".", "", ":", "",
)

func foldHeader(s string) string {
	return strings.TrimSpace(accentFolder.Replace(strings.ToLower(s)))
}

// ReadWorkbook parses a trial-balance .xlsx into mapped rows ready for
// normalization. The first sheet is used; the header row is auto-detected by
// matching known column names, then every row below it is mapped by column
// position. Row index is the zero-based offset within the data region so it
// matches what the caller reports back to the user.
func ReadWorkbook(r io.Reader, tpl *ColumnTemplate) ([]workflow.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}

	aliases := headerAliases
	if tpl != nil {
		aliases = tpl.aliases()
	}

	headerRow, mapping := detectHeader(rows, aliases)
	if mapping == nil {
		return nil, fmt.Errorf("header row not found: no known column names in the first %d rows", headerScanLimit)
	}

	var mapped []workflow.RawRow
	for _, row := range rows[headerRow+1:] {
		if isBlankRow(row) {
			continue
		}
		raw := workflow.RawRow{}
		for col, field := range mapping {
			if col < len(row) {
				raw[field] = row[col]
			}
		}
		mapped = append(mapped, raw)
	}
	return mapped, nil
}

// detectHeader returns the header row index and a column-index -> field map.
// A row qualifies when it names at least the classification column and one
// balance column; that rules out title rows that happen to contain "conta".
func detectHeader(rows [][]string, aliases map[string]string) (int, map[int]string) {
	limit := headerScanLimit
	if limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		mapping := map[int]string{}
		seen := map[string]bool{}
		for col, cell := range rows[i] {
			field, ok := aliases[foldHeader(cell)]
			if !ok || seen[field] {
				continue
			}
			mapping[col] = field
			seen[field] = true
		}
		if seen[workflow.FieldClassificacao] &&
			(seen[workflow.FieldSaldoAtual] || seen[workflow.FieldSaldoAnterior]) {
			return i, mapping
		}
	}
	return 0, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
