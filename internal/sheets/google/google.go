package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "expensebot/internal/sheets"
)

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON takes precedence over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.Backend = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}
}

// newSheetsService initializes a Sheets Service using Service Account credentials,
// falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)

	slog.InfoContext(ctx, "Checking service account configuration",
		"has_json", serviceAccountJSON != "",
		"file_path", serviceAccountFile)

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, ports.NewError(ports.ErrAuth, "credentials", fmt.Errorf("read service account file: %w", err))
		}
	default:
		return nil, ports.NewError(ports.ErrAuth, "credentials",
			errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)"))
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, ports.NewError(ports.ErrAuth, "credentials", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

func (c *Client) GetValues(ctx context.Context, rng string) (ports.ValueRange, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return ports.ValueRange{}, classify("get "+rng, err)
	}
	return ports.ValueRange{Range: resp.Range, Values: resp.Values}, nil
}

func (c *Client) UpdateValues(ctx context.Context, rng string, values [][]any, mode ports.InputMode) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(mode.String()).
		Context(ctx).Do()
	if err != nil {
		return classify("update "+rng, err)
	}
	return nil
}

func (c *Client) AppendValues(ctx context.Context, rng string, values [][]any, mode ports.InputMode) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(mode.String()).
		InsertDataOption("OVERWRITE").
		Context(ctx).Do()
	if err != nil {
		return classify("append "+rng, err)
	}
	return nil
}

func (c *Client) ClearValues(ctx context.Context, rng string) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return classify("clear "+rng, err)
	}
	return nil
}

func (c *Client) AddSheet(ctx context.Context, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classify("add sheet "+title, err)
	}
	for _, r := range resp.Replies {
		if r != nil && r.AddSheet != nil && r.AddSheet.Properties != nil {
			c.rememberSheet(r.AddSheet.Properties.Title, r.AddSheet.Properties.SheetId)
		}
	}
	return nil
}

func (c *Client) ListSheets(ctx context.Context) ([]string, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).Do()
	if err != nil {
		return nil, classify("list sheets", err)
	}
	names := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		c.rememberSheet(s.Properties.Title, s.Properties.SheetId)
		names = append(names, s.Properties.Title)
	}
	return names, nil
}

func (c *Client) FormatCurrency(ctx context.Context, title string, ranges []ports.GridRange) error {
	if len(ranges) == 0 {
		return nil
	}
	id, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	reqs := make([]*gsheet.Request, 0, len(ranges))
	for _, g := range ranges {
		reqs = append(reqs, &gsheet.Request{
			RepeatCell: &gsheet.RepeatCellRequest{
				Range: toGridRange(id, g),
				Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
					NumberFormat: &gsheet.NumberFormat{Type: "CURRENCY", Pattern: "#,##0.00"},
				}},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return classify("format "+title, err)
	}
	return nil
}

func (c *Client) rememberSheet(title string, id int64) {
	c.mu.Lock()
	c.sheetIDs[title] = id
	c.mu.Unlock()
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	if _, err := c.ListSheets(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sheetIDs[title]; ok {
		return id, nil
	}
	return 0, ports.NewError(ports.ErrSheetNotFound, "format "+title, nil)
}

// toGridRange converts to the API's grid range; unbounded ends are omitted.
func toGridRange(sheetID int64, g ports.GridRange) *gsheet.GridRange {
	gr := &gsheet.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(g.StartRow),
		StartColumnIndex: int64(g.StartCol),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
	if g.EndRow >= 0 {
		gr.EndRowIndex = int64(g.EndRow)
	}
	if g.EndCol >= 0 {
		gr.EndColumnIndex = int64(g.EndCol)
	}
	return gr
}

// classify maps API and token errors onto the backend error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return ports.NewError(ports.ErrAuth, op, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := strings.ToLower(gerr.Message)
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return ports.NewError(ports.ErrAuth, op, err)
		case gerr.Code == http.StatusForbidden:
			return ports.NewError(ports.ErrPermissionDenied, op, err)
		case gerr.Code == http.StatusNotFound:
			return ports.NewError(ports.ErrNotFound, op, err)
		case gerr.Code == http.StatusBadRequest && strings.Contains(msg, "already exists"):
			return ports.NewError(ports.ErrDuplicateSheet, op, err)
		case gerr.Code == http.StatusBadRequest && strings.Contains(msg, "unable to parse range"):
			return ports.NewError(ports.ErrSheetNotFound, op, err)
		}
		return ports.NewError(ports.ErrBackend, op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"oauth2", "invalid_grant", "private key", "credentials"} {
		if strings.Contains(msg, hint) {
			return ports.NewError(ports.ErrAuth, op, err)
		}
	}
	return ports.NewError(ports.ErrBackend, op, err)
}
