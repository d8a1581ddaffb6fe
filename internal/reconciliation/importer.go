package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"netbill/internal/billing"
	"netbill/internal/ledger"
	"netbill/internal/logger"
	"netbill/pkg/models"
)

// PaymentRecorder records one payment.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, in billing.PaymentInput) (models.InvoiceRecord, error)
}

// Importer feeds sheet rows into the ledger one payment at a time.
type Importer struct {
	reader   *DataReader
	payments PaymentRecorder
	log      zerolog.Logger
}

// NewImporter creates an Importer.
func NewImporter(reader *DataReader, payments PaymentRecorder) *Importer {
	return &Importer{
		reader:   reader,
		payments: payments,
		log:      logger.WithComponent("payment-import"),
	}
}

// Import records every valid row of sheetName. Rows that fail validation or
// whose period is already paid are skipped and reported. Any other failure
// stops the import; rows recorded before it stay recorded, and the returned
// result says which.
func (im *Importer) Import(ctx context.Context, sheetName string, dryRun bool) (*ImportResult, error) {
	const op = "Import"

	rows, issues, err := im.reader.ReadPayments(ctx, sheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &ImportResult{
		Sheet:    sheetName,
		Rows:     len(rows) + len(issues),
		Recorded: []RecordedPayment{},
		Skipped:  issues,
	}
	if dryRun {
		im.log.Info().Int("valid_rows", len(rows)).Int("invalid_rows", len(issues)).Msg("Dry run, nothing recorded")
		return result, nil
	}

	for _, row := range rows {
		rec, err := im.payments.RecordPayment(ctx, row.Input())
		switch {
		case err == nil:
			result.Recorded = append(result.Recorded, RecordedPayment{
				Row:           row.Row,
				SubscriberID:  rec.SubscriberID,
				InvoiceNumber: rec.InvoiceNumber,
				Amount:        rec.Amount,
			})
		case errors.Is(err, billing.ErrValidation), errors.Is(err, ledger.ErrDuplicatePeriod):
			im.log.Warn().Err(err).Int("row", row.Row).Str("subscriber", row.SubscriberID).Msg("Payment skipped")
			result.Skipped = append(result.Skipped, RowIssue{Row: row.Row, SubscriberID: row.SubscriberID, Reason: err.Error()})
		default:
			return result, fmt.Errorf("%s: row %d: %w", op, row.Row, err)
		}
	}

	im.log.Info().
		Int("recorded", len(result.Recorded)).
		Int("skipped", len(result.Skipped)).
		Str("sheet", sheetName).
		Msg("Payment import completed")
	return result, nil
}
