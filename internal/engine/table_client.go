package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const tableRowsAddPath = "/api/v1/gen_tables/action/rows/add"

// TableConfig configures a TableClient.
type TableConfig struct {
	BaseURL       string
	APIKey        string
	ProjectID     string
	OutlineTable  string
	OutlineColumn string
	StoryTable    string
	StoryColumn   string
}

// TableClient talks to a generative-table service: each call adds one row
// to an action table and reads the generated output column back.
type TableClient struct {
	cfg  TableConfig
	opts *clientOptions
}

// TableRowAddRequest is the body of a row-add call.
type TableRowAddRequest struct {
	TableID string `json:"table_id"`
	Data    []any  `json:"data"`
	Stream  bool   `json:"stream"`
}

func NewTableClient(cfg TableConfig, opts ...ClientOption) *TableClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TableClient{cfg: cfg, opts: newClientOptions(opts)}
}

func (c *TableClient) GenerateOutline(ctx context.Context, params *StoryParameters) (string, error) {
	return c.addRow(ctx, c.cfg.OutlineTable, c.cfg.OutlineColumn, params)
}

func (c *TableClient) GenerateChapter(ctx context.Context, req *ChapterRequest) (string, error) {
	return c.addRow(ctx, c.cfg.StoryTable, c.cfg.StoryColumn, req)
}

func (c *TableClient) addRow(ctx context.Context, table, column string, row any) (string, error) {
	if err := c.opts.wait(ctx); err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(&TableRowAddRequest{
		TableID: table,
		Data:    []any{row},
		Stream:  false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tableRowsAddPath, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("X-PROJECT-ID", c.cfg.ProjectID)

	c.opts.logger.Debug("adding table row", zap.String("table", table))

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if detail := gjson.GetBytes(respBody, "detail"); detail.Exists() {
			return "", fmt.Errorf("API error: %s (HTTP %d)", detail.String(), resp.StatusCode)
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return extractColumnText(respBody, column)
}

// extractColumnText reads the generated text of column from the first row.
func extractColumnText(body []byte, column string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("malformed response from generation service")
	}

	col := gjson.GetBytes(body, "rows.0.columns."+column)
	if !col.Exists() {
		return "", fmt.Errorf("column %s missing from response", column)
	}

	for _, path := range []string{"choices.0.message.content", "text"} {
		if v := col.Get(path); v.Exists() && v.String() != "" {
			return v.String(), nil
		}
	}
	return "", fmt.Errorf("column %s has no generated text", column)
}
