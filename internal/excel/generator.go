package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/service"
)

// Generator writes a card's computed billing cycles into a workbook: one
// summary sheet plus a detail sheet per cycle.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(statement model.InvoiceStatement) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Resumo"
	file.SetSheetName("Sheet1", summarySheet)
	keys := service.SortedCycleKeys(statement.Cycles)
	if err := g.writeSummary(file, summarySheet, statement, keys); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, key := range keys {
		sheetName := buildSheetName(key, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeCycle(file, sheetName, statement, key); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, statement model.InvoiceStatement, keys []string) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Cartão")
	set("B1", statement.Card.Name)
	set("A2", "Fechamento (dia)")
	set("B2", statement.Card.ClosingDay)
	set("A3", "Vencimento (dia)")
	set("B3", statement.Card.DueDay)
	set("A4", "Limite")
	set("B4", fmt.Sprintf("%.2f", statement.Card.CreditLimit))

	tableRow := 6
	set(fmt.Sprintf("A%d", tableRow), "Fatura")
	set(fmt.Sprintf("B%d", tableRow), "Lançamentos")
	set(fmt.Sprintf("C%d", tableRow), "Total")

	for i, key := range keys {
		cycle := statement.Cycles[key]
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), key)
		set(fmt.Sprintf("B%d", row), len(cycle.Items))
		set(fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", cycle.Total))
	}

	_ = file.SetColWidth(sheet, "A", "A", 22)
	_ = file.SetColWidth(sheet, "B", "C", 16)
	return nil
}

func (g *Generator) writeCycle(file *excelize.File, sheet string, statement model.InvoiceStatement, key string) error {
	cycle := statement.Cycles[key]
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Cartão")
	set("B1", statement.Card.Name)
	set("A2", "Fatura")
	set("B2", key)
	set("A3", "Total")
	set("B3", fmt.Sprintf("%.2f", cycle.Total))

	tableRow := 5
	headers := []string{"Descrição", "Parcela", "Valor"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, item := range cycle.Items {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), item.Description)
		set(fmt.Sprintf("B%d", row), fmt.Sprintf("%d/%d", item.Installment+1, item.Of))
		set(fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", item.Amount))
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "C", 14)
	return nil
}

func buildSheetName(key string, used map[string]struct{}) string {
	base := strings.TrimSpace(key)
	if base == "" {
		base = "Fatura"
	}
	if len(base) > 31 {
		base = base[:31]
	}

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
		counter++
	}
}
