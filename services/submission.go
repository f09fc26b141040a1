package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"hk_bids/models"
)

// Ledger is the local record of accepted submissions.
type Ledger interface {
	RecordSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
}

// SubmissionMirror copies accepted submissions somewhere else (Postgres).
type SubmissionMirror interface {
	RecordSubmission(ctx context.Context, sub *models.Submission) error
}

// ReceiptArchiver stores a receipt for an accepted submission (S3).
type ReceiptArchiver interface {
	ArchiveSubmission(ctx context.Context, sub *models.Submission) error
}

// SubmissionService writes bids to the submissions sheet and keeps the
// local ledger. The sheet append is the commit point; ledger, mirror and
// archive failures are logged and never undo it.
type SubmissionService struct {
	gateway  RowAppender
	sheetID  string
	ledger   Ledger
	mirror   SubmissionMirror
	archiver ReceiptArchiver
}

func NewSubmissionService(gateway RowAppender, sheetID string, ledger Ledger) *SubmissionService {
	return &SubmissionService{gateway: gateway, sheetID: sheetID, ledger: ledger}
}

// WithMirror enables the Postgres mirror.
func (s *SubmissionService) WithMirror(m SubmissionMirror) *SubmissionService {
	s.mirror = m
	return s
}

// WithArchiver enables receipt archiving.
func (s *SubmissionService) WithArchiver(a ReceiptArchiver) *SubmissionService {
	s.archiver = a
	return s
}

// Append sends all bids as one batch and records the result.
func (s *SubmissionService) Append(ctx context.Context, sessionID string, bids []models.Bid) (*models.Submission, error) {
	if len(bids) == 0 {
		return nil, models.ErrNoBidsPlaced
	}

	rows := make([]models.Record, len(bids))
	for i, b := range bids {
		rows[i] = b.Record()
	}
	if err := s.gateway.AppendRows(ctx, s.sheetID, rows); err != nil {
		return nil, fmt.Errorf("append submissions: %w", err)
	}

	sub := models.NewSubmission(sessionID, bids)
	zap.S().Infof("Submission: %s appended %d bids for %q (total %.2f)", sub.ID, len(bids), sub.Company, sub.Total)

	if s.ledger != nil {
		if err := s.ledger.RecordSubmission(ctx, sub); err != nil {
			zap.S().Warnf("Submission: ledger write failed for %s: %v", sub.ID, err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.RecordSubmission(ctx, sub); err != nil {
			zap.S().Warnf("Submission: mirror failed for %s: %v", sub.ID, err)
		}
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveSubmission(ctx, sub); err != nil {
			zap.S().Warnf("Submission: archive failed for %s: %v", sub.ID, err)
		}
	}

	return sub, nil
}

// Receipt loads an accepted submission from the ledger. It returns nil
// when the id is unknown.
func (s *SubmissionService) Receipt(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	if s.ledger == nil {
		return nil, nil
	}
	sub, err := s.ledger.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	return sub, nil
}

// receiptHeader is the xlsx column layout, matching the submissions sheet.
var receiptHeader = []string{models.ColUnitCode, models.ColCompany, models.ColBid, models.ColTimestamp, models.ColBidID}

const receiptSheet = "Bids"

// WriteReceiptXLSX renders a submission as a workbook.
func WriteReceiptXLSX(w io.Writer, sub *models.Submission) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", receiptSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	for i, h := range receiptHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(receiptSheet, cell, h)
	}
	f.SetCellStyle(receiptSheet, "A1", "E1", headerStyle)

	row := 2
	for _, b := range sub.Bids {
		values := []any{b.UnitCode, b.Company, b.Amount, b.Timestamp.Format(models.TimestampLayout), b.BidID}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(receiptSheet, cell, v)
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(2, row)
	totalCell, _ := excelize.CoordinatesToCellName(3, row)
	f.SetCellValue(receiptSheet, totalLabel, "Total")
	f.SetCellValue(receiptSheet, totalCell, sub.Total)

	first, _ := excelize.CoordinatesToCellName(3, 2)
	f.SetCellStyle(receiptSheet, first, totalCell, moneyStyle)

	f.SetColWidth(receiptSheet, "A", "A", 14)
	f.SetColWidth(receiptSheet, "B", "B", 28)
	f.SetColWidth(receiptSheet, "C", "C", 12)
	f.SetColWidth(receiptSheet, "D", "D", 20)
	f.SetColWidth(receiptSheet, "E", "E", 12)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
