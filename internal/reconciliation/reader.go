package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"netbill/internal/logger"
	"netbill/pkg/models"
)

// RangeReader reads cell values in A1 notation.
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// DataReader reads payment rows from a spreadsheet
type DataReader struct {
	source RangeReader
	log    zerolog.Logger
}

// NewDataReader creates a new data reader
func NewDataReader(source RangeReader) *DataReader {
	return &DataReader{
		source: source,
		log:    logger.WithComponent("reconciliation-reader"),
	}
}

// ReadPayments reads the payment rows of sheetName. Rows that cannot be
// parsed are returned as issues rather than failing the whole read.
func (dr *DataReader) ReadPayments(ctx context.Context, sheetName string) ([]PaymentRow, []RowIssue, error) {
	const op = "ReadPayments"

	dr.log.Info().Str("sheet", sheetName).Msg("Reading payments")

	// Expected columns: A=Subscriber, B=Amount, C=Method, D=Paid date, E=Notes, F=Period
	values, err := dr.source.ReadRange(ctx, fmt.Sprintf("'%s'!A:F", strings.ReplaceAll(sheetName, "'", "''")))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read %s sheet: %w", op, sheetName, err)
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%s: %s sheet is empty", op, sheetName)
	}

	var (
		rows   []PaymentRow
		issues []RowIssue
	)
	for i, row := range values[1:] {
		rowNum := i + 2 // header plus 1-based rows

		if isBlank(row) {
			continue
		}

		payment, err := parsePaymentRow(row, rowNum)
		if err != nil {
			dr.log.Warn().
				Err(err).
				Int("row", rowNum).
				Msg("Failed to parse payment, skipping")
			issues = append(issues, RowIssue{Row: rowNum, SubscriberID: getString(row, 0), Reason: err.Error()})
			continue
		}
		rows = append(rows, payment)
	}

	dr.log.Info().
		Int("total_rows", len(values)-1).
		Int("parsed_payments", len(rows)).
		Str("sheet", sheetName).
		Msg("Payments read successfully")

	return rows, issues, nil
}

// parsePaymentRow parses a single payment row
func parsePaymentRow(row []interface{}, rowNum int) (PaymentRow, error) {
	const op = "parsePaymentRow"

	subscriber := getString(row, 0)
	if subscriber == "" {
		return PaymentRow{}, fmt.Errorf("%s: missing subscriber in row %d", op, rowNum)
	}

	amountStr := getString(row, 1)
	amount, err := parseAmount(amountStr)
	if err != nil {
		return PaymentRow{}, fmt.Errorf("%s: invalid amount '%s' in row %d: %w", op, amountStr, rowNum, err)
	}

	payment := PaymentRow{
		Row:          rowNum,
		SubscriberID: subscriber,
		Amount:       amount,
		Method:       getString(row, 2),
		Notes:        getString(row, 4),
	}

	if dateStr := getString(row, 3); dateStr != "" {
		paid, err := parseDate(dateStr)
		if err != nil {
			return PaymentRow{}, fmt.Errorf("%s: invalid paid date '%s' in row %d: %w", op, dateStr, rowNum, err)
		}
		payment.PaidAt = &paid
	}

	if periodStr := getString(row, 5); periodStr != "" {
		t, err := time.Parse("2006-01", periodStr)
		if err != nil {
			return PaymentRow{}, fmt.Errorf("%s: invalid period '%s' in row %d, want YYYY-MM", op, periodStr, rowNum)
		}
		p := models.PeriodOf(t)
		payment.Period = &p
	}

	return payment, nil
}

// parseDate accepts ISO and day-first dates
func parseDate(dateStr string) (time.Time, error) {
	cleaned := strings.TrimSpace(dateStr)

	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"02.01.2006",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		// sheet dates are calendar dates in the operator's zone
		if date, err := time.ParseInLocation(format, cleaned, time.Local); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// parseAmount parses rupiah amounts such as "150000", "150.000", "Rp 150,000"
// or "150.000,50".
func parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountStr)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	upper := strings.ToUpper(cleaned)
	for _, prefix := range []string{"RP.", "RP", "IDR"} {
		if strings.HasPrefix(upper, prefix) {
			cleaned = cleaned[len(prefix):]
			break
		}
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// whichever comes last is the decimal separator
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		cleaned = normalizeSingleSeparator(cleaned, ".")
	case lastComma >= 0:
		cleaned = normalizeSingleSeparator(cleaned, ",")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", amountStr, cleaned)
	}
	return amount, nil
}

// normalizeSingleSeparator treats sep as a thousands separator when every
// group after it has three digits, and as the decimal point otherwise.
func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	thousands := len(parts) > 1
	for _, p := range parts[1:] {
		if len(p) != 3 {
			thousands = false
			break
		}
	}
	if thousands {
		return strings.Join(parts, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

func isBlank(row []interface{}) bool {
	for i := range row {
		if getString(row, i) != "" {
			return false
		}
	}
	return true
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
