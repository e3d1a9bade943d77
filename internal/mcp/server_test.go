package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vgh186/feishu/internal/dispatch"
	"github.com/vgh186/feishu/internal/extract"
	"github.com/vgh186/feishu/internal/history"
	"github.com/vgh186/feishu/internal/record"
)

const sampleText = `【选课通知】
请于本周五前完成选课。
【体检通知】
全体新生参加体检。`

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, span string) extract.Result {
	return extract.Result{Summary: span, Method: extract.MethodUnconfigured}
}

type stubWriter struct{ calls int }

func (w *stubWriter) Write(context.Context, *record.Record) (bool, string) {
	w.calls++
	return true, "ok"
}

func setupServer(t *testing.T) (*server.MCPServer, *stubWriter, history.Store) {
	t.Helper()
	st, err := history.Open(history.Config{Backend: history.BackendJSON, Path: filepath.Join(t.TempDir(), history.DefaultJSONFile)})
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local) }
	w := &stubWriter{}
	d := dispatch.New(dispatch.Config{
		Extractor: stubExtractor{},
		Writer:    w,
		History:   st,
		Now:       now,
		NewID:     func() string { return "batch-1" },
	})
	return NewServer(ServerConfig{Dispatcher: d, History: st, Version: "test"}), w, st
}

// callTool is a helper that invokes an MCP tool through the JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestNewServer(t *testing.T) {
	srv := NewServer(ServerConfig{})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestSplitTool(t *testing.T) {
	srv, w, _ := setupServer(t)

	result := callTool(t, srv, "split_notifications", map[string]interface{}{"text": sampleText})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	var got splitResult
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &got); err != nil {
		t.Fatalf("parsing split result: %v", err)
	}
	if got.Count != 2 || !strings.HasPrefix(got.Notifications[1], "【体检通知】") {
		t.Fatalf("unexpected split: %+v", got)
	}
	if w.calls != 0 {
		t.Fatal("split must not write")
	}
}

func TestSplitToolRequiresText(t *testing.T) {
	srv, _, _ := setupServer(t)
	result := callTool(t, srv, "split_notifications", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error without text")
	}
}

func TestSubmitTool(t *testing.T) {
	srv, w, st := setupServer(t)

	result := callTool(t, srv, "submit_notifications", map[string]interface{}{"text": sampleText})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	var got struct {
		BatchID   string `json:"batch_id"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		Summary   string `json:"summary"`
		Outcomes  []struct {
			Record record.Record `json:"record"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &got); err != nil {
		t.Fatalf("parsing submit result: %v", err)
	}
	if got.BatchID != "batch-1" || got.Succeeded != 2 || got.Failed != 0 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if got.Summary != "完成：2 条通知全部写入成功" {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	if got.Outcomes[0].Record.Title != "选课通知" {
		t.Fatalf("unexpected fallback title %q", got.Outcomes[0].Record.Title)
	}
	if w.calls != 2 {
		t.Fatalf("expected 2 writes, got %d", w.calls)
	}
	entries, err := st.List(context.Background(), history.ListOpts{})
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d (%v)", len(entries), err)
	}
}

func TestSubmitToolDryRun(t *testing.T) {
	srv, w, st := setupServer(t)

	result := callTool(t, srv, "submit_notifications", map[string]interface{}{"text": sampleText, "dry_run": true})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), "试运行：已解析 2 条通知") {
		t.Fatalf("unexpected dry-run output: %s", getTextContent(t, result))
	}
	if w.calls != 0 {
		t.Fatal("dry run must not write")
	}
	entries, _ := st.List(context.Background(), history.ListOpts{})
	if len(entries) != 0 {
		t.Fatalf("dry run must not log history, got %d entries", len(entries))
	}
}

func TestSubmitToolRejectsBlankText(t *testing.T) {
	srv, _, _ := setupServer(t)
	result := callTool(t, srv, "submit_notifications", map[string]interface{}{"text": "   \n  "})
	if !result.IsError {
		t.Fatal("expected error for blank text")
	}
}

func TestHistoryTool(t *testing.T) {
	srv, _, _ := setupServer(t)
	callTool(t, srv, "submit_notifications", map[string]interface{}{"text": sampleText})

	result := callTool(t, srv, "list_history", map[string]interface{}{"limit": float64(1)})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &entries); err != nil {
		t.Fatalf("parsing history: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "体检通知" {
		t.Fatalf("expected newest entry only, got %+v", entries)
	}
	if !entries[0].Succeeded() {
		t.Fatalf("expected success status, got %q", entries[0].Status)
	}
}

func TestHistoryToolWithoutStore(t *testing.T) {
	srv := NewServer(ServerConfig{})
	result := callTool(t, srv, "list_history", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error without history store")
	}
}

func rawToolCall(name string, args map[string]interface{}) json.RawMessage {
	data, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": name, "arguments": args},
	})
	return data
}

// blockingProcessor parks inside Process until release is closed.
type blockingProcessor struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProcessor) Process(context.Context, string, dispatch.Options) *dispatch.Report {
	p.entered <- struct{}{}
	<-p.release
	return &dispatch.Report{}
}

func TestServersDoNotShareLock(t *testing.T) {
	p := &blockingProcessor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	busy := NewServer(ServerConfig{Dispatcher: p})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		busy.HandleMessage(context.Background(), rawToolCall("submit_notifications", map[string]interface{}{"text": sampleText}))
	}()
	<-p.entered

	// A second server must answer while the first one is mid-submit.
	other, _, _ := setupServer(t)
	done := make(chan struct{})
	go func() {
		other.HandleMessage(context.Background(), rawToolCall("list_history", map[string]interface{}{}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("list_history on an independent server blocked behind another server's submit")
	}

	close(p.release)
	wg.Wait()
}
