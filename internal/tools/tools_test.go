package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/services/credentials"
	"github.com/j-veylop/minimax-status/internal/services/usage"
)

const okPayload = `{
	"model_remains": [{
		"start_time": 1736904600000,
		"end_time": 1736922600000,
		"remains_time": 5400000,
		"current_interval_total_count": 1000,
		"current_interval_usage_count": 750,
		"model_name": "MiniMax-M2"
	}],
	"base_resp": {"status_code": 0, "status_msg": "success"}
}`

// fakeAPI serves the remains endpoint and counts requests.
type fakeAPI struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) client(opts ...usage.ClientOption) *usage.Client {
	return usage.NewClient(append([]usage.ClientOption{usage.WithBaseURL(f.server.URL)}, opts...)...)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newStore(t *testing.T) *credentials.Store {
	t.Helper()
	return credentials.New(filepath.Join(t.TempDir(), ".minimax-config.json"))
}

func configuredStore(t *testing.T) *credentials.Store {
	t.Helper()
	store := newStore(t)
	if err := store.Save("secret-token-1234", "g1"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return store
}

type recorderFunc func(ctx context.Context, snap *models.UsageSnapshot) error

func (f recorderFunc) InsertSnapshot(ctx context.Context, snap *models.UsageSnapshot) error {
	return f(ctx, snap)
}

func TestStatus_NotConfigured(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, okPayload))

	tests := []struct {
		name    string
		content string
	}{
		{name: "absent file"},
		{name: "invalid json", content: "{not json"},
		{name: "missing group id", content: `{"token": "abc"}`},
		{name: "empty token", content: `{"token": "", "groupId": "g1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			if tt.content != "" {
				if err := os.WriteFile(store.Path(), []byte(tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			got := New(store, api.client()).Status(context.Background(), false)
			if got != NotConfiguredText {
				t.Errorf("Status() = %q, want the configuration instructions", got)
			}
		})
	}

	if n := api.calls.Load(); n != 0 {
		t.Errorf("made %d HTTP requests, want 0", n)
	}
}

func TestStatus_Success(t *testing.T) {
	var gotAuth, gotGroup string
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotGroup = r.URL.Query().Get("GroupId")
		respond(http.StatusOK, okPayload)(w, r)
	})

	got := New(configuredStore(t), api.client()).Status(context.Background(), false)

	want := strings.Join([]string{
		"MiniMax Coding Plan 用量状态",
		"----------------------------------------",
		"模型: MiniMax-M2",
		"已用: 250 / 1,000",
		"进度: [██░░░░░░░░] 25%",
		"剩余: 750 次",
		"重置: 2025-01-15 14:30 (约1小时30分钟)",
		"----------------------------------------",
	}, "\n")
	if got != want {
		t.Errorf("Status() =\n%s\nwant\n%s", got, want)
	}
	if gotAuth != "Bearer secret-token-1234" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotGroup != "g1" {
		t.Errorf("GroupId = %q, want g1", gotGroup)
	}
}

func TestStatus_RefreshFetchesEveryCall(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, okPayload))
	tl := New(configuredStore(t), api.client())

	first := tl.Status(context.Background(), false)
	second := tl.Status(context.Background(), true)

	if first != second {
		t.Errorf("refresh flag changed output:\n%s\nvs\n%s", first, second)
	}
	if n := api.calls.Load(); n != 2 {
		t.Errorf("made %d HTTP requests, want 2", n)
	}
}

func TestStatus_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "unauthorized",
			handler: respond(http.StatusUnauthorized, `{"error":"bad token"}`),
			want:    "认证失败，请检查 token 和 groupId 是否正确",
		},
		{
			name:    "base_resp auth failure",
			handler: respond(http.StatusOK, `{"model_remains":[],"base_resp":{"status_code":1004,"status_msg":"login fail"}}`),
			want:    "认证失败，请检查 token 和 groupId 是否正确",
		},
		{
			name:    "server error",
			handler: respond(http.StatusInternalServerError, "boom"),
			want:    "获取用量失败: usage request failed (status 500): boom",
		},
		{
			name:    "no model entries",
			handler: respond(http.StatusOK, `{"model_remains":[],"base_resp":{"status_code":0}}`),
			want:    "获取用量失败: No usage data available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t, tt.handler)
			got := New(configuredStore(t), api.client()).Status(context.Background(), false)
			if got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatus_Timeout(t *testing.T) {
	release := make(chan struct{})
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	got := New(configuredStore(t), api.client(usage.WithTimeout(50*time.Millisecond))).Status(context.Background(), false)

	if got != "请求超时，请检查网络连接" {
		t.Errorf("Status() = %q, want the timeout message", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Status() took %v", elapsed)
	}
}

func TestStatus_Recorder(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, okPayload))

	var recorded *models.UsageSnapshot
	rec := recorderFunc(func(_ context.Context, snap *models.UsageSnapshot) error {
		recorded = snap
		return nil
	})

	New(configuredStore(t), api.client(), WithRecorder(rec)).Status(context.Background(), false)

	if recorded == nil {
		t.Fatal("snapshot was not recorded")
	}
	if recorded.GroupID != "g1" || recorded.Used != 250 || recorded.Percentage != 25 {
		t.Errorf("recorded %+v", recorded)
	}
	if recorded.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestStatus_RecorderFailureIgnored(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, okPayload))
	rec := recorderFunc(func(context.Context, *models.UsageSnapshot) error {
		return errors.New("disk full")
	})

	got := New(configuredStore(t), api.client(), WithRecorder(rec)).Status(context.Background(), false)
	if !strings.HasPrefix(got, "MiniMax Coding Plan 用量状态") {
		t.Errorf("Status() = %q, want the usage report", got)
	}
}

func TestStatus_RecorderSkippedOnError(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusUnauthorized, ""))
	called := false
	rec := recorderFunc(func(context.Context, *models.UsageSnapshot) error {
		called = true
		return nil
	})

	New(configuredStore(t), api.client(), WithRecorder(rec)).Status(context.Background(), false)
	if called {
		t.Error("recorder called for a failed fetch")
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", ErrNotConfigured, NotConfiguredText},
		{"wrapped unauthorized", errors.Join(errors.New("ctx"), usage.ErrUnauthorized), "认证失败，请检查 token 和 groupId 是否正确"},
		{"timeout", usage.ErrTimeout, "请求超时，请检查网络连接"},
		{"transport", &usage.TransportError{Err: errors.New("connection refused")}, "获取用量失败: connection refused"},
		{"other", errors.New("weird"), "获取用量失败: weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorText(tt.err); got != tt.want {
				t.Errorf("ErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuth_SetThenGet(t *testing.T) {
	store := newStore(t)
	tl := New(store, usage.NewClient())

	got := tl.Auth(ActionSet, "abc", "g1")
	if want := "认证信息已保存到 " + store.Path(); got != want {
		t.Errorf("Auth(set) = %q, want %q", got, want)
	}

	got = tl.Auth(ActionGet, "", "")
	if want := "当前认证信息:\n- Token: ****abc\n- GroupID: g1"; got != want {
		t.Errorf("Auth(get) = %q, want %q", got, want)
	}
}

func TestAuth_GetMasksToLastFour(t *testing.T) {
	tl := New(configuredStore(t), usage.NewClient())

	first := tl.Auth(ActionGet, "", "")
	if want := "当前认证信息:\n- Token: ****1234\n- GroupID: g1"; first != want {
		t.Errorf("Auth(get) = %q, want %q", first, want)
	}
	if strings.Contains(first, "secret") {
		t.Error("Auth(get) leaked the token")
	}

	// get has no side effects
	if second := tl.Auth(ActionGet, "", ""); second != first {
		t.Errorf("second Auth(get) = %q, want %q", second, first)
	}
}

func TestAuth_DefaultActionIsGet(t *testing.T) {
	tl := New(configuredStore(t), usage.NewClient())
	if got, want := tl.Auth("", "", ""), tl.Auth(ActionGet, "", ""); got != want {
		t.Errorf("Auth(\"\") = %q, want %q", got, want)
	}
}

func TestAuth_GetNotConfigured(t *testing.T) {
	tl := New(newStore(t), usage.NewClient())
	if got := tl.Auth(ActionGet, "", ""); got != "未配置认证信息。请使用 action=set 设置 token 和 groupId" {
		t.Errorf("Auth(get) = %q", got)
	}
}

func TestAuth_SetMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		groupID string
	}{
		{"no token", "", "g1"},
		{"no group", "abc", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			got := New(store, usage.NewClient()).Auth(ActionSet, tt.token, tt.groupID)
			if got != "设置认证需要提供 token 和 groupId 两个参数" {
				t.Errorf("Auth(set) = %q", got)
			}
			if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
				t.Error("credential file written for invalid input")
			}
		})
	}
}

func TestAuth_SetSaveFailure(t *testing.T) {
	// A regular file where the parent directory should be makes Save fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	store := credentials.New(filepath.Join(blocker, "config.json"))

	got := New(store, usage.NewClient()).Auth(ActionSet, "abc", "g1")
	if !strings.HasPrefix(got, "保存认证信息失败: ") {
		t.Errorf("Auth(set) = %q, want save failure text", got)
	}
}

func TestAuth_UnknownAction(t *testing.T) {
	tl := New(newStore(t), usage.NewClient())
	if got := tl.Auth("delete", "", ""); got != "未知操作: delete" {
		t.Errorf("Auth(delete) = %q", got)
	}
}
