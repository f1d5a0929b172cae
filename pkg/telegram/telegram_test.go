package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backflow/conf"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	req  sendMessageRequest
}

func newServer(t *testing.T, status int, reply string, got *[]captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*got = append(*got, captured{path: r.URL.Path, req: req})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Enabled(t *testing.T) {
	assert.False(t, NewClient(conf.TelegramConfig{}).Enabled())
	assert.False(t, NewClient(conf.TelegramConfig{BotToken: "t"}).Enabled())
	assert.True(t, NewClient(conf.TelegramConfig{BotToken: "t", ChatID: "1"}).Enabled())

	err := NewClient(conf.TelegramConfig{}).Send(context.Background(), "x", "y")
	assert.EqualError(t, err, "telegram not configured")
}

func TestClient_Send(t *testing.T) {
	var got []captured
	srv := newServer(t, http.StatusOK, `{"ok":true}`, &got)
	c := NewClient(conf.TelegramConfig{BotToken: "123:abc", ChatID: "-100"}, WithBaseURL(srv.URL+"/"))

	require.NoError(t, c.Send(context.Background(), "swing <v2>", "a & b\n  x  y\n"))

	require.Len(t, got, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", got[0].path)
	assert.Equal(t, "-100", got[0].req.ChatID)
	assert.Equal(t, "HTML", got[0].req.ParseMode)
	assert.Equal(t, "<b>swing &lt;v2&gt;</b>\n<pre>a &amp; b\n  x  y</pre>", got[0].req.Text)
}

func TestClient_SendSplitsLongReports(t *testing.T) {
	var got []captured
	srv := newServer(t, http.StatusOK, `{"ok":true}`, &got)
	c := NewClient(conf.TelegramConfig{BotToken: "t", ChatID: "1"}, WithBaseURL(srv.URL))

	line := strings.Repeat("x", 99)
	body := strings.Repeat(line+"\n", 100)
	require.NoError(t, c.Send(context.Background(), "report", body))

	require.Len(t, got, 3)
	lines := 0
	for i, m := range got {
		assert.LessOrEqual(t, len(m.req.Text), MaxMessageLen)
		assert.True(t, strings.HasPrefix(m.req.Text, "<b>report ("), "part %d", i)
		pre := strings.TrimSuffix(strings.SplitN(m.req.Text, "<pre>", 2)[1], "</pre>")
		lines += len(strings.Split(pre, "\n"))
	}
	assert.Equal(t, 100, lines)
	assert.True(t, strings.HasPrefix(got[2].req.Text, "<b>report (3/3)</b>"))
}

func TestClient_SendAPIError(t *testing.T) {
	var got []captured
	srv := newServer(t, http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`, &got)
	c := NewClient(conf.TelegramConfig{BotToken: "t", ChatID: "1"}, WithBaseURL(srv.URL))

	err := c.Send(context.Background(), "report", "body")
	assert.EqualError(t, err, "send part 1/1: sendMessage status 400: Bad Request: chat not found")
}

func TestClient_SendHidesToken(t *testing.T) {
	c := NewClient(conf.TelegramConfig{BotToken: "secret-token", ChatID: "1"}, WithBaseURL("http://127.0.0.1:1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, "report", "body")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{""}, Chunk("", 10))
	assert.Equal(t, []string{"ab\ncd"}, Chunk("ab\ncd\n", 10))
	assert.Equal(t, []string{"abcd", "efgh"}, Chunk("abcd\nefgh", 6))

	// 转义实体不会被拆开
	for _, c := range Chunk(strings.Repeat("&", 7), 11) {
		assert.NotContains(t, strings.ReplaceAll(c, "&amp;", ""), "&")
		assert.LessOrEqual(t, len(c), 11)
	}
}
