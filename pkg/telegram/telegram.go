package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backflow/conf"

	"github.com/goccy/go-json"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	// MaxMessageLen 单条消息上限 4096，留出余量
	MaxMessageLen = 4000
)

// Client Telegram Bot sendMessage 推送
type Client struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL 测试时指向 httptest 服务
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func NewClient(cfg conf.TelegramConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      cfg.BotToken,
		chatID:     cfg.ChatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled token 和 chat id 都配置了才推送
func (c *Client) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send 标题加粗，正文放在 <pre> 里保持表格对齐；正文过长时按行拆成多条
func (c *Client) Send(ctx context.Context, title, body string) error {
	if !c.Enabled() {
		return fmt.Errorf("telegram not configured")
	}
	head := "<b>" + html.EscapeString(title) + "</b>\n"
	budget := MaxMessageLen - len(head) - len("<pre></pre>") - len(" (99/99)")
	chunks := Chunk(body, budget)
	for i, chunk := range chunks {
		text := head + "<pre>" + chunk + "</pre>"
		if len(chunks) > 1 {
			text = fmt.Sprintf("<b>%s (%d/%d)</b>\n<pre>%s</pre>", html.EscapeString(title), i+1, len(chunks), chunk)
		}
		if err := c.sendMessage(ctx, text); err != nil {
			return fmt.Errorf("send part %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: c.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url 里带 token，只保留底层错误
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("sendMessage request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("sendMessage status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("sendMessage status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// Chunk 对正文做 HTML 转义并按行切分，每段转义后长度不超过 limit；超长的单行按字符硬切
func Chunk(body string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimSuffix(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		for _, piece := range splitLine(line, limit-1) {
			esc := html.EscapeString(piece) + "\n"
			if cur.Len()+len(esc) > limit {
				flush()
			}
			cur.WriteString(esc)
		}
	}
	flush()
	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

// splitLine 不拆开 rune 和转义实体
func splitLine(line string, limit int) []string {
	if len(html.EscapeString(line)) <= limit {
		return []string{line}
	}
	var (
		out  []string
		size int
		last int
	)
	for i, r := range line {
		n := len(html.EscapeString(string(r)))
		if size+n > limit && i > last {
			out = append(out, line[last:i])
			last, size = i, 0
		}
		size += n
	}
	return append(out, line[last:])
}
