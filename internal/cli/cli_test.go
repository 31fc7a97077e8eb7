package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxadmin/internal/api"
	"wxadmin/internal/events"
	"wxadmin/internal/wechat"
)

type testEnv struct {
	t      *testing.T
	config string
}

// newTestEnv writes a config file pointing the CLI at handler and at a fresh
// database. handler may be nil for commands that stay local.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("api_base: %s/api\ndb: %s\nlog_file: %s\nmax_retries: 0\nrequest_timeout: 2s\n",
		srv.URL, filepath.Join(dir, "wxadmin.db"), filepath.Join(dir, "wxadmin.log"))
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	return &testEnv{t: t, config: cfg}
}

// run executes the root command with args and returns its output.
func (e *testEnv) run(input string, args ...string) (string, error) {
	e.t.Helper()
	resetFlags(rootCmd)
	e.t.Cleanup(func() { _ = closeApp() })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	_ = closeApp()
	return out.String(), err
}

// resetFlags clears flag values left over from an earlier run of the shared
// command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

const reminderList = `{"status":"success","data":[
	{"id":1,"title":"早会","calendar_type":"solar","month":null,"day":null,"hour":9,"minute":30,"enabled":1,"chatnames":"[\"研发群\"]"}
]}`

func TestReminderList(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reminders", r.URL.Path)
		writeJSON(w, reminderList)
	})

	out, err := env.run("", "reminder", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "早会")
	assert.Contains(t, out, "公历 每月每天 09:30")
	assert.Contains(t, out, "已启用")
	assert.Contains(t, out, "Total: 1 reminders")
}

func TestReminderAdd(t *testing.T) {
	var body map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, `{"status":"success","message":"ok"}`)
	})

	out, err := env.run("", "reminder", "add", "--title", "交房租", "--day", "5", "--hour", "9", "--chats", "室友、房东")
	require.NoError(t, err)
	assert.Contains(t, out, "添加成功")

	assert.Equal(t, "交房租", body["title"])
	assert.Equal(t, "solar", body["calendar_type"])
	assert.Equal(t, float64(5), body["day"])
	assert.Nil(t, body["month"])
	assert.Equal(t, float64(9), body["hour"])
	assert.Equal(t, `["室友","房东"]`, body["chatnames"])
}

func TestReminderAddRequiresTitle(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.run("", "reminder", "add", "--day", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "请输入提醒标题")

	_, err = env.run("", "reminder", "add", "--title", "x", "--hour", "24")
	require.Error(t, err)
}

func TestReminderUpdateKeepsUnsetFields(t *testing.T) {
	var body map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, reminderList)
		case http.MethodPut:
			assert.Equal(t, "/api/reminders/1", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, `{"status":"success"}`)
		}
	})

	out, err := env.run("", "reminder", "update", "1", "--minute", "45", "--enabled=false")
	require.NoError(t, err)
	assert.Contains(t, out, "更新成功")

	assert.Equal(t, "早会", body["title"])
	assert.Equal(t, float64(9), body["hour"])
	assert.Equal(t, float64(45), body["minute"])
	assert.Equal(t, `["研发群"]`, body["chatnames"])
}

func TestReminderDeleteConfirms(t *testing.T) {
	var deletes int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, reminderList)
		case http.MethodDelete:
			atomic.AddInt32(&deletes, 1)
			assert.Equal(t, "/api/reminders/1", r.URL.Path)
			writeJSON(w, `{"status":"success"}`)
		}
	})

	out, err := env.run("n\n", "reminder", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `确定要删除提醒 "早会" 吗？`)
	assert.Contains(t, out, "Cancelled.")
	assert.Zero(t, atomic.LoadInt32(&deletes))

	out, err = env.run("", "reminder", "delete", "1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "删除成功")
	assert.Equal(t, int32(1), atomic.LoadInt32(&deletes))

	_, err = env.run("", "reminder", "delete", "7", "--yes")
	assert.ErrorContains(t, err, "reminder not found")
}

func TestChatListAndSet(t *testing.T) {
	var putBody map[string]any
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/processors":
			writeJSON(w, `[{"id":"weather","name":"weather","description":"天气查询处理器"},{"id":"holiday","name":"holiday","description":""}]`)
		case r.Method == http.MethodGet:
			writeJSON(w, `[{"chat_name":"研发群","processors":"[\"weather\"]"},{"chat_name":"空群","processors":null}]`)
		case r.Method == http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			writeJSON(w, `{"status":"success"}`)
		}
	})

	out, err := env.run("", "chat", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "天气查询")
	assert.Contains(t, out, "未配置处理器")
	assert.Contains(t, out, "Total: 2 chats")

	out, err = env.run("", "chat", "set", "空群", "天气查询", "holiday", "weather")
	require.NoError(t, err)
	assert.Contains(t, out, "更新成功")
	assert.Equal(t, []any{"weather", "holiday"}, putBody["processors"])

	_, err = env.run("", "chat", "set", "空群", "nope")
	assert.ErrorContains(t, err, "unknown processor: nope")
}

func TestSettingsSetAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run("", "settings", "set", "poll_interval", "45s")
	require.NoError(t, err)
	assert.Contains(t, out, "已保存 轮询间隔 = 45s")

	out, err = env.run("", "settings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "45s")

	// request_timeout comes from the config file, so the stored value is shadowed.
	out, err = env.run("", "settings", "set", "request_timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "overridden")

	_, err = env.run("", "settings", "set", "poll_interval", "soon")
	assert.ErrorContains(t, err, "保存失败")

	out, err = env.run("", "settings", "reset", "poll_interval")
	require.NoError(t, err)
	assert.Contains(t, out, "poll_interval reset")

	out, err = env.run("", "settings", "reset", "poll_interval")
	require.NoError(t, err)
	assert.Contains(t, out, "not stored")
}

func TestWeChatStatusRecordsHistory(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wechat_status", r.URL.Path)
		writeJSON(w, `{"status":"success","data":{"status":"online"}}`)
	})

	out, err := env.run("", "wechat", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "WeChat: 在线 (微信正常运行中)")

	out, err = env.run("", "wechat", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "checking")
	assert.Contains(t, out, "online")
	assert.Contains(t, out, "manual")

	out, err = env.run("", "wechat", "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	out, err = env.run("", "wechat", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded.")
}

func TestWeChatStatusFailure(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"status":"error","message":"service down"}`)
	})

	_, err := env.run("", "wechat", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service down")
}

func TestResolveProcessors(t *testing.T) {
	processors := []*api.Processor{
		{ID: "p1", Name: "weather", Description: "天气处理器"},
		{ID: "p2", Name: "holiday"},
	}

	ids, err := resolveProcessors(processors, []string{"天气", "holiday", "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	ids, err = resolveProcessors(processors, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = resolveProcessors(processors, []string{"p3"})
	assert.ErrorContains(t, err, "unknown processor: p3")
}

func TestCompleteSettingKeys(t *testing.T) {
	keys, _ := completeSettingKeys(settingsSetCmd, nil, "log")
	assert.Equal(t, []string{"login_recheck_delay\t登录复查延迟", "log_level\t日志级别"}, keys)

	choices, _ := completeSettingKeys(settingsSetCmd, []string{"log_level"}, "w")
	assert.Equal(t, []string{"warn"}, choices)

	none, _ := completeSettingKeys(settingsSetCmd, []string{"poll_interval"}, "")
	assert.Empty(t, none)
}

func TestWaitForRecheck(t *testing.T) {
	sub := make(chan events.Event, 2)
	sub <- events.Event{Type: events.StateChanged, NewState: "offline", Data: wechat.SourcePoll}
	sub <- events.Event{Type: events.StateChanged, NewState: "online", Data: wechat.SourceRecheck}

	state, err := waitForRecheck(context.Background(), sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, wechat.Online, state)

	close(sub)
	_, err = waitForRecheck(context.Background(), sub, time.Second)
	assert.ErrorContains(t, err, "controller stopped")

	_, err = waitForRecheck(context.Background(), make(chan events.Event), 10*time.Millisecond)
	assert.ErrorContains(t, err, "no re-check result")
}
