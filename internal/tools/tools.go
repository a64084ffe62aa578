// Package tools implements the two operations exposed to the host: the usage
// status report and credential management. Both return display text and
// never an error.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/minimax-status/internal/logger"
	"github.com/j-veylop/minimax-status/internal/models"
	"github.com/j-veylop/minimax-status/internal/services/usage"
)

const (
	// NotConfiguredText is returned by Status when no usable credentials exist.
	NotConfiguredText = `请先配置认证信息！

配置方式：
1. 如果已安装 Claude Code 版 minimax-status，配置文件已自动共享，无需重复配置
2. 或手动创建 ~/.minimax-config.json:
{
  "token": "your-api-token",
  "groupId": "your-group-id"
}

获取 token 和 groupId:
1. 登录 https://platform.minimaxi.com/user-center/payment/coding-plan
2. 获取 API Key 和 Group ID`

	unauthorizedText = "认证失败，请检查 token 和 groupId 是否正确"
	timeoutText      = "请求超时，请检查网络连接"
	fetchFailedText  = "获取用量失败: %s"

	authMissingText = "未配置认证信息。请使用 action=set 设置 token 和 groupId"
	authCurrentText = "当前认证信息:\n- Token: %s\n- GroupID: %s"
	authSavedText   = "认证信息已保存到 %s"
	saveFailedText  = "保存认证信息失败: %s"
	unknownText     = "未知操作: %s"

	// ActionGet shows the stored credentials with the token masked.
	ActionGet = "get"
	// ActionSet replaces the stored credentials.
	ActionSet = "set"
)

var (
	// ErrNotConfigured means the credential file is absent, unreadable or incomplete.
	ErrNotConfigured = errors.New("credentials not configured")
	// ErrInvalidInput means an auth set call is missing token or group id.
	ErrInvalidInput = errors.New("设置认证需要提供 token 和 groupId 两个参数")
)

// CredentialStore persists the token and group id.
type CredentialStore interface {
	Load() *models.Credentials
	Save(token, groupID string) error
	Path() string
}

// Fetcher retrieves the raw remains payload.
type Fetcher interface {
	FetchUsage(ctx context.Context, token, groupID string) (*models.RemainsResponse, error)
}

// Recorder stores successful snapshots.
type Recorder interface {
	InsertSnapshot(ctx context.Context, snap *models.UsageSnapshot) error
}

// Tools binds the operations to a credential store and an API client.
type Tools struct {
	store    CredentialStore
	fetcher  Fetcher
	recorder Recorder
	now      func() time.Time
}

// Option configures Tools.
type Option func(*Tools)

// WithRecorder stores every successful status snapshot.
func WithRecorder(r Recorder) Option {
	return func(t *Tools) {
		t.recorder = r
	}
}

// New creates the tool set.
func New(store CredentialStore, fetcher Fetcher, opts ...Option) *Tools {
	t := &Tools{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Snapshot runs the fetch and parse pipeline once.
func (t *Tools) Snapshot(ctx context.Context) (*models.UsageSnapshot, error) {
	creds := t.store.Load()
	if !creds.IsComplete() {
		return nil, ErrNotConfigured
	}

	payload, err := t.fetcher.FetchUsage(ctx, creds.Token, creds.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch usage: %w", err)
	}

	snap, err := usage.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse usage: %w", err)
	}
	snap.GroupID = creds.GroupID
	snap.FetchedAt = t.now()

	return snap, nil
}

// Status reports current usage. The refresh flag is accepted for
// compatibility and has no effect: every call fetches.
func (t *Tools) Status(ctx context.Context, refresh bool) string {
	logger.Debug("status requested", "refresh", refresh)

	snap, err := t.Snapshot(ctx)
	if err != nil {
		return ErrorText(err)
	}

	if t.recorder != nil {
		if err := t.recorder.InsertSnapshot(ctx, snap); err != nil {
			logger.Warn("failed to record snapshot", "error", err)
		}
	}

	return usage.Format(snap)
}

// ErrorText converts a pipeline error into the message shown to the user.
func ErrorText(err error) string {
	var transportErr *usage.TransportError
	switch {
	case errors.Is(err, ErrNotConfigured):
		return NotConfiguredText
	case errors.Is(err, usage.ErrUnauthorized):
		return unauthorizedText
	case errors.Is(err, usage.ErrTimeout):
		return timeoutText
	case errors.As(err, &transportErr):
		return fmt.Sprintf(fetchFailedText, transportErr.Error())
	case errors.Is(err, usage.ErrNoData):
		return fmt.Sprintf(fetchFailedText, usage.ErrNoData.Error())
	default:
		return fmt.Sprintf(fetchFailedText, err.Error())
	}
}

// Auth shows or replaces the stored credentials. An empty action means get.
func (t *Tools) Auth(action, token, groupID string) string {
	switch action {
	case "", ActionGet:
		creds := t.store.Load()
		if !creds.IsComplete() {
			return authMissingText
		}
		return fmt.Sprintf(authCurrentText, creds.MaskedToken(), creds.GroupID)

	case ActionSet:
		if token == "" || groupID == "" {
			return ErrInvalidInput.Error()
		}
		if err := t.store.Save(token, groupID); err != nil {
			logger.Error("failed to save credentials", "path", t.store.Path(), "error", err)
			return fmt.Sprintf(saveFailedText, err.Error())
		}
		return fmt.Sprintf(authSavedText, t.store.Path())

	default:
		return fmt.Sprintf(unknownText, action)
	}
}
