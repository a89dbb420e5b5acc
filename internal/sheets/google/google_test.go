package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "expensebot/internal/sheets"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", &googleapi.Error{Code: 401}, ports.ErrAuth},
		{"forbidden", &googleapi.Error{Code: 403, Message: "The caller does not have permission"}, ports.ErrPermissionDenied},
		{"not found", &googleapi.Error{Code: 404, Message: "Requested entity was not found."}, ports.ErrNotFound},
		{"duplicate", &googleapi.Error{Code: 400, Message: `A sheet with the name "Feb 2026" already exists.`}, ports.ErrDuplicateSheet},
		{"missing tab", &googleapi.Error{Code: 400, Message: "Unable to parse range: 'Feb 2026'!A1:H5"}, ports.ErrSheetNotFound},
		{"other 400", &googleapi.Error{Code: 400, Message: "Invalid value"}, ports.ErrBackend},
		{"token", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, ports.ErrAuth},
		{"key text", errors.New("private key should be a PEM"), ports.ErrAuth},
		{"network", errors.New("connection reset by peer"), ports.ErrBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want kind %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}
}

func TestToGridRange(t *testing.T) {
	gr := toGridRange(9, ports.GridRange{StartRow: 5, EndRow: -1, StartCol: 2, EndCol: 3})
	if gr.SheetId != 9 || gr.StartRowIndex != 5 || gr.EndRowIndex != 0 || gr.StartColumnIndex != 2 || gr.EndColumnIndex != 3 {
		t.Fatalf("unexpected grid range: %+v", gr)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewWithService(svc, "sheet-id")
}

func TestMissingTabMapsToSheetNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("valueRenderOption"); got != "UNFORMATTED_VALUE" {
			t.Errorf("valueRenderOption = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Unable to parse range: 'Mar 2026'!A6:D","status":"INVALID_ARGUMENT"}}`)
	})
	_, err := c.GetValues(context.Background(), ports.A1("Mar 2026", "A6:D"))
	if !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected sheet not found, got %v", err)
	}
}

func TestAppendUsesOverwrite(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("insertDataOption") != "OVERWRITE" || q.Get("valueInputOption") != "RAW" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if !strings.HasSuffix(r.URL.Path, ":append") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})
	err := c.AppendValues(context.Background(), ports.A1("Feb 2026", "A6:D"), [][]any{{"2026-02-01", "", 10.5, "lunch"}}, ports.Raw)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFormatCurrencyResolvesSheetID(t *testing.T) {
	var body gsheet.BatchUpdateSpreadsheetRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"sheets":[{"properties":{"title":"Feb 2026","sheetId":7}}]}`)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{}`)
	})
	err := c.FormatCurrency(context.Background(), "Feb 2026", []ports.GridRange{{StartRow: 4, EndRow: 5, StartCol: 5, EndCol: 8}})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(body.Requests) != 1 || body.Requests[0].RepeatCell == nil {
		t.Fatalf("unexpected requests: %+v", body.Requests)
	}
	rc := body.Requests[0].RepeatCell
	if rc.Range.SheetId != 7 || rc.Cell.UserEnteredFormat.NumberFormat.Type != "CURRENCY" {
		t.Fatalf("unexpected repeat cell: %+v", rc)
	}
}

func TestFormatCurrencyUnknownSheet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"sheets":[]}`)
	})
	err := c.FormatCurrency(context.Background(), "Nope", []ports.GridRange{{EndRow: 1, EndCol: 1}})
	if !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected sheet not found, got %v", err)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}
