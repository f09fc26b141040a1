package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"hk_bids/cache"
	"hk_bids/config"
	"hk_bids/models"
)

const (
	sheetReadRetries = 2
	sheetRetryDelay  = 500 * time.Millisecond
)

// SmartsheetStore reads and appends rows of Smartsheet sheets over the
// REST API. Sheet reads are memoized per sheet id.
type SmartsheetStore struct {
	baseURL    string
	token      string
	client     *http.Client
	tables     *cache.Memo[*models.Table]
	retryDelay time.Duration
}

func NewSmartsheetStore(cfg *config.SmartsheetConfig, client *http.Client, ttl time.Duration) *SmartsheetStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SmartsheetStore{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		client:     client,
		tables:     cache.NewMemo[*models.Table](ttl),
		retryDelay: sheetRetryDelay,
	}
}

type sheetColumn struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
}

type sheetCell struct {
	ColumnID int64 `json:"columnId"`
	Value    any   `json:"value,omitempty"`
}

type sheetRow struct {
	ID    int64       `json:"id,omitempty"`
	ToTop bool        `json:"toTop,omitempty"`
	Cells []sheetCell `json:"cells"`
}

type sheetResp struct {
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	Columns []sheetColumn `json:"columns"`
	Rows    []sheetRow    `json:"rows"`
}

type apiError struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
	RefID     string `json:"refId"`
}

// FetchTable returns every row of a sheet keyed by column title, in sheet
// order. Results are shared between callers; do not modify them.
func (s *SmartsheetStore) FetchTable(ctx context.Context, sheetID string) (*models.Table, error) {
	return s.tables.Get(ctx, sheetID, func(ctx context.Context) (*models.Table, error) {
		sheet, err := s.getSheet(ctx, sheetID, "")
		if err != nil {
			return nil, err
		}
		table := toTable(sheetID, sheet)
		zap.S().Debugf("Fetched sheet %s (%s): %d columns, %d rows", sheetID, sheet.Name, len(table.Columns), len(table.Rows))
		return table, nil
	})
}

// Invalidate drops the memoized copy of a sheet.
func (s *SmartsheetStore) Invalidate(sheetID string) {
	s.tables.Invalidate(sheetID)
}

// AppendRows adds rows to the top of a sheet in a single call. Every column
// named by every row must exist in the sheet or nothing is sent.
func (s *SmartsheetStore) AppendRows(ctx context.Context, sheetID string, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}

	sheet, err := s.getSheet(ctx, sheetID, "pageSize=1")
	if err != nil {
		return err
	}
	columnMap := make(map[string]int64, len(sheet.Columns))
	for _, col := range sheet.Columns {
		columnMap[col.Title] = col.ID
	}

	payload := make([]sheetRow, 0, len(rows))
	for _, rec := range rows {
		row := sheetRow{ToTop: true}
		for _, c := range rec {
			id, ok := columnMap[c.Column]
			if !ok {
				return fmt.Errorf("%w: %q in sheet %s", models.ErrUnknownColumn, c.Column, sheetID)
			}
			row.Cells = append(row.Cells, sheetCell{ColumnID: id, Value: c.Value})
		}
		payload = append(payload, row)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/sheets/"+sheetID+"/rows", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: add rows to %s: %v", models.ErrGatewayUnavailable, sheetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: add rows to %s: %s", models.ErrGatewayUnavailable, sheetID, readAPIError(resp))
	}

	zap.S().Infof("Appended %d rows to sheet %s", len(payload), sheetID)
	return nil
}

// getSheet reads a sheet, retrying transport failures and 5xx/429 responses.
func (s *SmartsheetStore) getSheet(ctx context.Context, sheetID, query string) (*sheetResp, error) {
	url := s.baseURL + "/sheets/" + sheetID
	if query != "" {
		url += "?" + query
	}

	var lastErr error
	for attempt := 0; attempt <= sheetReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: get sheet %s: %v", models.ErrGatewayUnavailable, sheetID, ctx.Err())
			case <-time.After(time.Duration(attempt) * s.retryDelay):
			}
			zap.S().Warnf("Retrying sheet %s (attempt %d): %v", sheetID, attempt+1, lastErr)
		}

		sheet, retry, err := s.getSheetOnce(ctx, url)
		if err == nil {
			return sheet, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, fmt.Errorf("%w: get sheet %s: %v", models.ErrGatewayUnavailable, sheetID, lastErr)
}

func (s *SmartsheetStore) getSheetOnce(ctx context.Context, url string) (*sheetResp, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, false, err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("%s", readAPIError(resp))
	}

	var sheet sheetResp
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return nil, false, fmt.Errorf("decode sheet: %w", err)
	}
	return &sheet, false, nil
}

func (s *SmartsheetStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")
}

func readAPIError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("status %d: smartsheet error %d: %s", resp.StatusCode, apiErr.ErrorCode, apiErr.Message)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// toTable maps cells to column titles by column id, keeping column order.
func toTable(sheetID string, sheet *sheetResp) *models.Table {
	titles := make(map[int64]string, len(sheet.Columns))
	table := &models.Table{ID: sheetID}
	for _, col := range sheet.Columns {
		titles[col.ID] = col.Title
		table.Columns = append(table.Columns, col.Title)
	}

	for _, row := range sheet.Rows {
		values := make(map[string]any, len(row.Cells))
		for _, cell := range row.Cells {
			if title, ok := titles[cell.ColumnID]; ok {
				values[title] = cell.Value
			}
		}
		rec := make(models.Record, 0, len(table.Columns))
		for _, title := range table.Columns {
			rec = append(rec, models.Cell{Column: title, Value: values[title]})
		}
		table.Rows = append(table.Rows, rec)
	}
	return table
}
