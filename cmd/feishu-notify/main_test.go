package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vgh186/feishu/internal/config"
)

const notices = `【选课通知】
请于本周五前完成选课。
【缴费通知】
请按时缴纳学费。`

type fakeFeishu struct {
	mu      sync.Mutex
	records []map[string]any
	failOn  string
}

func (f *fakeFeishu) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"msg":"ok","tenant_access_token":"t-123","expire":7200}`))
	})
	mux.HandleFunc("/open-apis/bitable/v1/apps/app1/tables/tbl1/records", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if title, _ := body.Fields["院校通知"].(string); f.failOn != "" && strings.Contains(title, f.failOn) {
			_, _ = w.Write([]byte(`{"code":1254045,"msg":"FieldNameNotFound"}`))
			return
		}
		f.records = append(f.records, body.Fields)
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"record":{"record_id":"rec1"}}}`))
	})
	return mux
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvConfigPath, config.EnvAppID, config.EnvAppSecret, config.EnvBitableAppToken,
		config.EnvTableID, config.EnvVolcAPIKey, config.EnvVolcEndpointID, config.EnvLLMProvider,
		config.EnvHistoryPath, config.EnvHistoryBackend,
	} {
		t.Setenv(k, "")
	}
}

// setup writes a config pointing at a fake Feishu server and returns the
// global flags every command needs.
func setup(t *testing.T, f *fakeFeishu) []string {
	t.Helper()
	clearEnv(t)
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := map[string]any{
		"FEISHU_APP_ID":            "cli_a1",
		"FEISHU_APP_SECRET":        "secret-1234",
		"FEISHU_BITABLE_APP_TOKEN": "app1",
		"FEISHU_TABLE_ID":          "tbl1",
		"feishu":                   map[string]any{"base_url": srv.URL},
	}
	b, _ := json.Marshal(cfg)
	path := filepath.Join(dir, config.DefaultConfigFile)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return []string{"--config", path, "--history", filepath.Join(dir, "history.json"), "--log-level", "error"}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmit_WritesAndRecordsHistory(t *testing.T) {
	f := &fakeFeishu{failOn: "缴费"}
	flags := setup(t, f)

	out, err := run(t, notices, append([]string{"submit", "-"}, flags...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "完成：成功 1 条，失败 1 条") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "失败: ") || !strings.Contains(out, "1254045") {
		t.Fatalf("failure reason not printed:\n%s", out)
	}
	if len(f.records) != 1 || f.records[0]["院校通知"] != "【选课通知】" {
		t.Fatalf("unexpected records written: %v", f.records)
	}

	out, err = run(t, "", append([]string{"history", "--full"}, flags...)...)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "请按时缴纳学费。") || !strings.Contains(out, "状态: 成功") {
		t.Fatalf("unexpected history:\n%s", out)
	}
	if !strings.Contains(out, "状态: 失败: 添加记录失败 (code: 1254045): FieldNameNotFound") {
		t.Fatalf("failure status should read as one message:\n%s", out)
	}
	if strings.Index(out, "缴费通知") > strings.Index(out, "选课通知") {
		t.Fatalf("history should list newest first:\n%s", out)
	}
}

func TestSubmit_DryRunWritesNothing(t *testing.T) {
	f := &fakeFeishu{}
	flags := setup(t, f)

	out, err := run(t, notices, append([]string{"submit", "--dry-run"}, flags...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "试运行：已解析 2 条通知") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if len(f.records) != 0 {
		t.Fatal("dry run must not write")
	}

	out, err = run(t, "", append([]string{"history"}, flags...)...)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "（暂无历史记录）") {
		t.Fatalf("dry run must not log history:\n%s", out)
	}
}

func TestSubmit_FromFile(t *testing.T) {
	f := &fakeFeishu{}
	flags := setup(t, f)
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte(notices), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", append([]string{"submit", path}, flags...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "完成：2 条通知全部写入成功") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSubmit_EmptyInput(t *testing.T) {
	flags := setup(t, &fakeFeishu{})
	if _, err := run(t, "  \n", append([]string{"submit"}, flags...)...); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSplit(t *testing.T) {
	out, err := run(t, notices, "split")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !strings.Contains(out, "--- 通知 2 ---\n【缴费通知】") || !strings.HasSuffix(out, "共 2 条通知\n") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHistoryTable(t *testing.T) {
	f := &fakeFeishu{}
	flags := setup(t, f)
	if _, err := run(t, notices, append([]string{"submit"}, flags...)...); err != nil {
		t.Fatalf("submit: %v", err)
	}

	out, err := run(t, "", append([]string{"history", "-n", "1"}, flags...)...)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "【缴费通知】") || !strings.Contains(lines[1], "成功") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestConfigMasksSecrets(t *testing.T) {
	flags := setup(t, &fakeFeishu{})
	out, err := run(t, "", append([]string{"config"}, flags...)...)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if strings.Contains(out, "secret-1234") {
		t.Fatalf("secret leaked:\n%s", out)
	}
	if !strings.Contains(out, "*******1234") {
		t.Fatalf("masked secret missing:\n%s", out)
	}
	if !strings.Contains(out, "飞书写入: 已就绪") || !strings.Contains(out, "智能提取: 未配置") {
		t.Fatalf("unexpected readiness:\n%s", out)
	}
	if !strings.Contains(out, "[cli: --history]") {
		t.Fatalf("history source not shown:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "feishu-notify "+version+"\n" {
		t.Fatalf("unexpected version output %q", out)
	}
}
