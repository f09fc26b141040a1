package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"hk_bids/config"
	"hk_bids/models"
)

// TableReader reads whole sheets.
type TableReader interface {
	FetchTable(ctx context.Context, sheetID string) (*models.Table, error)
}

// RowAppender writes rows to a sheet in one call.
type RowAppender interface {
	AppendRows(ctx context.Context, sheetID string, rows []models.Record) error
}

// Gateway is the spreadsheet datastore.
type Gateway interface {
	TableReader
	RowAppender
}

// invalidator is implemented by gateways that memoize sheets.
type invalidator interface {
	Invalidate(sheetID string)
}

// ReferenceService loads the units and bid request sheets and joins them
// into the rows a vendor bids on.
type ReferenceService struct {
	gateway TableReader
	sheets  config.SheetIDs
}

func NewReferenceService(gateway TableReader, sheets config.SheetIDs) *ReferenceService {
	return &ReferenceService{gateway: gateway, sheets: sheets}
}

// Load returns one row per bid request, in bid_units order. Requests whose
// unit is missing from the units sheet keep a nil Unit. A non-empty batchID
// keeps only that batch.
func (s *ReferenceService) Load(ctx context.Context, batchID string) ([]models.Row, error) {
	units, err := s.units(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests(ctx)
	if err != nil {
		return nil, err
	}
	return JoinRows(requests, units, batchID), nil
}

// JoinRows right-joins requests with units on unit code.
func JoinRows(requests []models.BidRequest, units map[string]models.Unit, batchID string) []models.Row {
	rows := make([]models.Row, 0, len(requests))
	for _, req := range requests {
		if batchID != "" && req.BidID != batchID {
			continue
		}
		row := models.Row{Request: req}
		if u, ok := units[req.UnitCode]; ok {
			u := u
			row.Unit = &u
		}
		rows = append(rows, row)
	}
	return rows
}

// BatchIDs returns the set of bid batch ids currently in the bid_units
// sheet.
func (s *ReferenceService) BatchIDs(ctx context.Context) (map[string]struct{}, error) {
	requests, err := s.requests(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for _, r := range requests {
		if r.BidID != "" {
			ids[r.BidID] = struct{}{}
		}
	}
	return ids, nil
}

// Warm refetches both reference sheets into the gateway cache and returns
// the joined rows. Cached copies are dropped first so a scheduled warm
// picks up sheet edits made inside the cache window.
func (s *ReferenceService) Warm(ctx context.Context) ([]models.Row, error) {
	if inv, ok := s.gateway.(invalidator); ok {
		inv.Invalidate(s.sheets.Units)
		inv.Invalidate(s.sheets.BidUnits)
	}
	rows, err := s.Load(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("warm reference data: %w", err)
	}
	zap.S().Infof("Reference: warmed %d bid rows", len(rows))
	return rows, nil
}

func (s *ReferenceService) units(ctx context.Context) (map[string]models.Unit, error) {
	table, err := s.gateway.FetchTable(ctx, s.sheets.Units)
	if err != nil {
		return nil, fmt.Errorf("fetch units: %w", err)
	}
	units := make(map[string]models.Unit, len(table.Rows))
	for _, rec := range table.Rows {
		u := models.UnitFromRecord(rec)
		if u.Code == "" {
			continue
		}
		// first occurrence wins on duplicate codes
		if _, seen := units[u.Code]; !seen {
			units[u.Code] = u
		}
	}
	return units, nil
}

func (s *ReferenceService) requests(ctx context.Context) ([]models.BidRequest, error) {
	table, err := s.gateway.FetchTable(ctx, s.sheets.BidUnits)
	if err != nil {
		return nil, fmt.Errorf("fetch bid units: %w", err)
	}
	requests := make([]models.BidRequest, 0, len(table.Rows))
	for _, rec := range table.Rows {
		req := models.BidRequestFromRecord(rec)
		if req.UnitCode == "" {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}
