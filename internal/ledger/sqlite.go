package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"netbill/pkg/models"
)

// SQLite persists the ledger in a SQLite database. Each Save replaces the
// stored document inside a single database transaction.
type SQLite struct {
	db *gorm.DB
}

type invoiceRow struct {
	ID            string `gorm:"primaryKey"`
	Position      int    `gorm:"index"`
	InvoiceNumber string
	SubscriberID  string `gorm:"index"`
	Amount        string
	Method        string
	Status        string
	PeriodDate    time.Time
	PaidAt        *time.Time
	Notes         string
	Commissions   string
	CreatedOn     time.Time
	UpdatedOn     time.Time
}

func (invoiceRow) TableName() string { return "ledger_invoices" }

type metaRow struct {
	ID       int `gorm:"primaryKey;autoIncrement:false"`
	Sequence int
}

func (metaRow) TableName() string { return "ledger_meta" }

// NewSQLite opens (and migrates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	const op = "NewSQLite"

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, path, err)
	}
	if err := db.AutoMigrate(&invoiceRow{}, &metaRow{}); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reads every record in stored order.
func (s *SQLite) Load(ctx context.Context) (*Document, error) {
	const op = "SQLite.Load"

	var rows []invoiceRow
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	doc := NewDocument()
	var meta metaRow
	err := s.db.WithContext(ctx).First(&meta, 1).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("%s: meta: %w", op, err)
	default:
		doc.Sequence = meta.Sequence
	}

	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("%s: row %s: %w", op, row.ID, err)
		}
		doc.Invoices = append(doc.Invoices, rec)
	}
	return doc, nil
}

// Save replaces the stored document.
func (s *SQLite) Save(ctx context.Context, doc *Document) error {
	const op = "SQLite.Save"

	rows := make([]invoiceRow, 0, len(doc.Invoices))
	for i, rec := range doc.Invoices {
		row, err := fromRecord(i, rec)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&invoiceRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}
		return tx.Save(&metaRow{ID: 1, Sequence: doc.Sequence}).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func fromRecord(pos int, rec models.InvoiceRecord) (invoiceRow, error) {
	row := invoiceRow{
		ID:            rec.ID,
		Position:      pos,
		InvoiceNumber: rec.InvoiceNumber,
		SubscriberID:  rec.SubscriberID,
		Amount:        rec.Amount.String(),
		Method:        rec.Method,
		Status:        string(rec.Status),
		PeriodDate:    rec.PeriodDate.UTC(),
		Notes:         rec.Notes,
		CreatedOn:     rec.CreatedAt.UTC(),
		UpdatedOn:     rec.UpdatedAt.UTC(),
	}
	if rec.PaidAt != nil {
		t := rec.PaidAt.UTC()
		row.PaidAt = &t
	}
	if len(rec.Commissions) > 0 {
		data, err := json.Marshal(rec.Commissions)
		if err != nil {
			return invoiceRow{}, fmt.Errorf("encode commissions of %s: %w", rec.ID, err)
		}
		row.Commissions = string(data)
	}
	return row, nil
}

func (row invoiceRow) toRecord() (models.InvoiceRecord, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return models.InvoiceRecord{}, fmt.Errorf("amount: %w", err)
	}
	rec := models.InvoiceRecord{
		ID:            row.ID,
		InvoiceNumber: row.InvoiceNumber,
		SubscriberID:  row.SubscriberID,
		Amount:        amount,
		Method:        row.Method,
		Status:        models.InvoiceStatus(row.Status),
		PeriodDate:    row.PeriodDate.UTC(),
		Notes:         row.Notes,
		CreatedAt:     row.CreatedOn.UTC(),
		UpdatedAt:     row.UpdatedOn.UTC(),
	}
	if row.PaidAt != nil {
		t := row.PaidAt.UTC()
		rec.PaidAt = &t
	}
	if row.Commissions != "" {
		if err := json.Unmarshal([]byte(row.Commissions), &rec.Commissions); err != nil {
			return models.InvoiceRecord{}, fmt.Errorf("commissions: %w", err)
		}
	}
	return rec, nil
}
