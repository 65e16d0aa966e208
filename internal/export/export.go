// Package export writes settlement reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dentalsettle/backend/internal/models"
)

// SheetName is the worksheet holding the settlement.
const SheetName = "Liquidación"

// Row is the flat shape of one settlement line handed to the spreadsheet.
type Row struct {
	PatientName    string
	ServiceName    string
	DoctorName     string
	AssistantName  string
	Deposit        decimal.Decimal
	Discount       decimal.Decimal
	BilledTotal    decimal.Decimal
	IsOwnPatient   bool
	PayoutFraction decimal.Decimal
	PayoutAmount   decimal.Decimal
	PaymentMethod  string
	DepositMethod  string
	AmountPaid     decimal.Decimal
	Notes          string
}

// Header is the column header row, in Row field order.
var Header = []string{
	"Paciente",
	"Servicio",
	"Doctor",
	"Auxiliar",
	"Abono",
	"Descuento",
	"Valor total",
	"Paciente propio",
	"Porcentaje",
	"Valor liquidado",
	"Método de pago",
	"Método de abono",
	"Valor pagado",
	"Observaciones",
}

var columnWidths = []float64{28, 26, 22, 22, 12, 12, 14, 10, 12, 16, 18, 18, 14, 36}

// summaryRows is the number of rows above the header.
const summaryRows = 4

// Rows flattens a report into export rows, keeping the report order.
func Rows(r *models.SettlementReport) []Row {
	rows := make([]Row, 0, len(r.Rows))
	for _, sr := range r.Rows {
		rows = append(rows, Row{
			PatientName:    sr.PatientName,
			ServiceName:    sr.ServiceName,
			DoctorName:     sr.DoctorName,
			AssistantName:  sr.AssistantName,
			Deposit:        sr.Deposit,
			Discount:       sr.Discount,
			BilledTotal:    sr.BilledTotal,
			IsOwnPatient:   sr.IsOwnPatient,
			PayoutFraction: sr.PayoutFraction,
			PayoutAmount:   sr.PayoutAmount,
			PaymentMethod:  sr.PaymentMethod,
			DepositMethod:  sr.DepositMethod,
			AmountPaid:     sr.AmountPaid,
			Notes:          sr.Notes,
		})
	}
	return rows
}

func (r Row) values() []any {
	own := "No"
	if r.IsOwnPatient {
		own = "Sí"
	}
	return []any{
		r.PatientName,
		r.ServiceName,
		r.DoctorName,
		r.AssistantName,
		r.Deposit.InexactFloat64(),
		r.Discount.InexactFloat64(),
		r.BilledTotal.InexactFloat64(),
		own,
		r.PayoutFraction.InexactFloat64(),
		r.PayoutAmount.InexactFloat64(),
		r.PaymentMethod,
		r.DepositMethod,
		r.AmountPaid.InexactFloat64(),
		r.Notes,
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// FileName returns the download name of a report's workbook. The
// practitioner's name is reduced to ASCII letters, digits and dashes so the
// name is safe in a Content-Disposition header and on any filesystem.
func FileName(r *models.SettlementReport) string {
	return fmt.Sprintf("liquidacion_%s_%s_%s.xlsx", fileSafe(r.Doctor), models.FormatDate(r.Start), models.FormatDate(r.End))
}

func fileSafe(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.Trim(unsafeFileChars.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "sin_nombre"
	}
	return s
}

// WriteWorkbook renders the report as an .xlsx workbook to w: a short summary
// block (practitioner, period, total) followed by one row per service line.
func WriteWorkbook(w io.Writer, r *models.SettlementReport) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	summary := [][]any{
		{"Profesional", r.Doctor},
		{"Periodo", fmt.Sprintf("%s a %s", models.FormatDate(r.Start), models.FormatDate(r.End))},
		{"Total a liquidar", r.Total.InexactFloat64()},
	}
	for i, values := range summary {
		if err := setRow(f, 1, i+1, values); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "A3", styles.bold); err != nil {
		return fmt.Errorf("failed to set summary style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "B3", "B3", styles.money); err != nil {
		return fmt.Errorf("failed to set summary style: %w", err)
	}

	headerRow := summaryRows + 1
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := setRow(f, 1, headerRow, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Header), headerRow)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	if err := f.SetCellStyle(SheetName, first, last, styles.header); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	rows := Rows(r)
	for i, row := range rows {
		if err := setRow(f, 1, headerRow+1+i, row.values()); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		if err := styleColumns(f, headerRow+1, headerRow+len(rows), styles); err != nil {
			return err
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	bold, header, money, percent int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create style: %w", err)
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt := "#,##0"
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt}); err != nil {
		return s, fmt.Errorf("failed to create money style: %w", err)
	}
	if s.percent, err = f.NewStyle(&excelize.Style{NumFmt: 9}); err != nil {
		return s, fmt.Errorf("failed to create percent style: %w", err)
	}
	return s, nil
}

// money columns: Abono, Descuento, Valor total, Valor liquidado, Valor pagado.
var moneyColumns = []int{5, 6, 7, 10, 13}

const percentColumn = 9

func styleColumns(f *excelize.File, fromRow, toRow int, s sheetStyles) error {
	apply := func(col, style int) error {
		top, err := excelize.CoordinatesToCellName(col, fromRow)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		bottom, err := excelize.CoordinatesToCellName(col, toRow)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellStyle(SheetName, top, bottom, style); err != nil {
			return fmt.Errorf("failed to set column style: %w", err)
		}
		return nil
	}
	for _, col := range moneyColumns {
		if err := apply(col, s.money); err != nil {
			return err
		}
	}
	return apply(percentColumn, s.percent)
}

func setRow(f *excelize.File, col, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
