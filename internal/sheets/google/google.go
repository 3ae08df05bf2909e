package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"rentbook/internal/sheets"
	"rentbook/internal/storage"
)

const valueInput = "USER_ENTERED"

var _ sheets.Mirror = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Credentials selects the service account used for the spreadsheet.
// JSON wins over File when both are set.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case c.File != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := creds.load()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "component", "sheets", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// NewHTTPClient returns a pooled client suitable for goption.WithHTTPClient.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// EnsureTabs creates any missing collection tab and writes its header row.
func (c *Client) EnsureTabs(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	existing := make(map[string]bool)
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var add []*gsheet.Request
	for _, coll := range sheets.Collections() {
		title, _ := sheets.Title(coll)
		if !existing[title] {
			add = append(add, &gsheet.Request{
				AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
			})
		}
	}
	if len(add) > 0 {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: add}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add tabs: %w", err)
		}
		slog.InfoContext(ctx, "Spreadsheet tabs created", "component", "sheets", "count", len(add))
	}

	for _, coll := range sheets.Collections() {
		if err := c.writeHeader(ctx, coll); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) writeHeader(ctx context.Context, collection string) error {
	title, err := sheets.Title(collection)
	if err != nil {
		return err
	}
	header, err := sheets.Header(collection)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A1", title)
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

// findRow returns the 1-based row holding id in column A, or 0.
func (c *Client) findRow(ctx context.Context, title, id string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) Upsert(ctx context.Context, collection, id string, fields storage.Record) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title, err := sheets.Title(collection)
	if err != nil {
		return err
	}
	row, err := sheets.RowFor(collection, id, fields)
	if err != nil {
		return err
	}

	n, err := c.findRow(ctx, title, id)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	if n > 0 {
		rng := fmt.Sprintf("%s!A%d", title, n)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption(valueInput).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A1", title)
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to %s: %w", title, err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, collection, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title, err := sheets.Title(collection)
	if err != nil {
		return err
	}
	last, _ := sheets.LastColumn(collection)

	n, err := c.findRow(ctx, title, id)
	if err != nil || n == 0 {
		return err
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", title, n, last, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) Replace(ctx context.Context, collection string, docs []storage.Document) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title, err := sheets.Title(collection)
	if err != nil {
		return err
	}
	last, _ := sheets.LastColumn(collection)

	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		row, err := sheets.RowFor(collection, d.ID, d.Fields)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	clearRng := fmt.Sprintf("%s!A2:%s", title, last)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}
	if err := c.writeHeader(ctx, collection); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A2", title)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption(valueInput).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}
