package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the Feishu open platform host.
const DefaultBaseURL = "https://open.feishu.cn"

// DefaultTimeout bounds each Feishu request.
const DefaultTimeout = 10 * time.Second

// codeDateFormatRejected is returned when a date column rejects the value sent.
const codeDateFormatRejected = 1254064

// tokenRefreshMargin is subtracted from the token lifetime before reuse stops.
const tokenRefreshMargin = 5 * time.Minute

// Client talks to the auth and bitable endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken // app id -> token
	now    func() time.Time
}

type cachedToken struct {
	value   string
	expires time.Time
}

// NewClient creates a client for baseURL (DefaultBaseURL if empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     make(map[string]cachedToken),
		now:        time.Now,
	}
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int    `json:"expire"`
}

// TenantToken exchanges app credentials for a tenant access token. Tokens are
// reused until shortly before they expire.
func (c *Client) TenantToken(ctx context.Context, appID, appSecret string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tokens[appID]; ok && c.now().Before(t.expires) {
		return t.value, nil
	}

	payload := map[string]string{"app_id": appID, "app_secret": appSecret}
	status, body, err := c.post(ctx, "/open-apis/auth/v3/tenant_access_token/internal/", "", payload)
	if err != nil {
		return "", fmt.Errorf("请求访问令牌时网络错误: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("令牌接口返回 HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("令牌响应不是 JSON: %w", err)
	}
	if tr.Token == "" {
		msg := tr.Msg
		if msg == "" {
			msg = "响应中缺少 tenant_access_token"
		}
		return "", fmt.Errorf("%s (code %d)", msg, tr.Code)
	}

	if tr.Expire > 0 {
		lifetime := time.Duration(tr.Expire)*time.Second - tokenRefreshMargin
		if lifetime > 0 {
			c.tokens[appID] = cachedToken{value: tr.Token, expires: c.now().Add(lifetime)}
		}
	}
	return tr.Token, nil
}

// InvalidateToken drops the cached token for appID.
func (c *Client) InvalidateToken(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, appID)
}

type addRecordResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Record struct {
			RecordID string `json:"record_id"`
			ID       string `json:"id"`
		} `json:"record"`
	} `json:"data"`
	Error *struct {
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// AddResult is the outcome of one AddRecord call.
type AddResult struct {
	OK         bool
	Message    string // human-readable outcome, shown to the user and kept in history
	HTTPStatus int    // 0 when no response was received
	Code       int    // Feishu business code, 0 on success or when absent
}

// AddRecord inserts one row into the table.
func (c *Client) AddRecord(ctx context.Context, token, appToken, tableID string, fields map[string]any) AddResult {
	path := fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records",
		url.PathEscape(appToken), url.PathEscape(tableID))

	status, body, err := c.post(ctx, path, token, map[string]any{"fields": fields})
	if err != nil {
		return AddResult{HTTPStatus: status, Message: fmt.Sprintf("添加记录时网络错误: %v", err)}
	}

	var ar addRecordResponse
	jsonErr := json.Unmarshal(body, &ar)
	res := AddResult{HTTPStatus: status, Code: ar.Code}

	switch {
	case status < 200 || status > 299:
		if jsonErr == nil && ar.Code != 0 {
			res.Message = fmt.Sprintf("HTTP %d: %s", status, describeFailure(ar))
		} else {
			res.Message = fmt.Sprintf("HTTP %d 添加记录失败: %s", status, strings.TrimSpace(string(body)))
		}
	case jsonErr != nil:
		res.Message = "添加记录的响应不是 JSON"
	case ar.Code != 0:
		res.Message = describeFailure(ar)
	default:
		res.OK = true
		res.Message = ar.Msg
		if res.Message == "" {
			res.Message = "记录添加成功"
		}
	}
	return res
}

func describeFailure(ar addRecordResponse) string {
	detail := ar.Msg
	if detail == "" {
		detail = "未知错误"
	}
	if id := firstNonEmpty(ar.Data.Record.RecordID, ar.Data.Record.ID); id != "" {
		detail += fmt.Sprintf(" (记录 ID: %s)", id)
	} else if ar.Error != nil && len(ar.Error.Details) > 0 && string(ar.Error.Details) != "null" {
		detail += " 详情: " + string(ar.Error.Details)
	}
	if ar.Code == codeDateFormatRejected {
		detail += "；表格拒绝了日期值。日期以毫秒时间戳发送，请确认日期列的类型为日期字段"
	}
	return fmt.Sprintf("添加记录失败 (code: %d): %s", ar.Code, detail)
}

func (c *Client) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
