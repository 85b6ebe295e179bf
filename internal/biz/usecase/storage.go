package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

// Synced configuration keys
const (
	KeySlackToken          = "slackToken"
	KeyAppToken            = "appToken"
	KeyChannelName         = "channelName"
	KeyBitbucketURL        = "bitbucketUrl"
	KeyMergeButtonSelector = "mergeButtonSelector"
	KeyAllowedPhrases      = "allowedPhrases"
	KeyDisallowedPhrases   = "disallowedPhrases"
	KeyExceptionPhrases    = "exceptionPhrases"
)

// Local runtime keys
const (
	KeyMessages            = "messages"
	KeyLastMatchingMessage = "lastMatchingMessage"
	KeyLastKnownMergeState = "lastKnownMergeState"
	KeyChannelID           = "channelId"
	KeyCachedChannelName   = "cachedChannelName"
	KeyTeamID              = "teamId"
	KeyFeatureEnabled      = "featureEnabled"
	KeyReactivationTime    = "reactivationTime"
	KeyLastConnectTime     = "lastWebSocketConnectTime"
)

// Storage provides typed access to the key-value store
type Storage struct {
	kv repo.KVRepo
}

// NewStorage wraps a key-value repository
func NewStorage(kv repo.KVRepo) *Storage {
	return &Storage{kv: kv}
}

func (s *Storage) getJSON(ctx context.Context, area repo.Area, key string, dst any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, area, key)
	if err != nil {
		return false, fmt.Errorf("get %s.%s: %w", area, key, err)
	}
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s.%s: %w", area, key, err)
	}
	return true, nil
}

func (s *Storage) setJSON(ctx context.Context, area repo.Area, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", area, key, err)
	}
	if err := s.kv.Set(ctx, area, key, raw); err != nil {
		return fmt.Errorf("set %s.%s: %w", area, key, err)
	}
	return nil
}

func (s *Storage) getString(ctx context.Context, area repo.Area, key string) (string, error) {
	var v string
	_, err := s.getJSON(ctx, area, key, &v)
	return v, err
}

// Settings reads the synced configuration in one pass over the sync area.
// Unknown keys are ignored.
func (s *Storage) Settings(ctx context.Context) (domain.Settings, error) {
	all, err := s.kv.All(ctx, repo.AreaSync)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("list %s: %w", repo.AreaSync, err)
	}

	var st domain.Settings
	fields := []struct {
		key string
		dst *string
	}{
		{KeySlackToken, &st.SlackToken},
		{KeyAppToken, &st.AppToken},
		{KeyChannelName, &st.ChannelName},
		{KeyBitbucketURL, &st.BitbucketURL},
		{KeyMergeButtonSelector, &st.MergeButtonSelector},
		{KeyAllowedPhrases, &st.AllowedPhrases},
		{KeyDisallowedPhrases, &st.DisallowedPhrases},
		{KeyExceptionPhrases, &st.ExceptionPhrases},
	}
	for _, f := range fields {
		raw := all[f.key]
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return domain.Settings{}, fmt.Errorf("decode %s.%s: %w", repo.AreaSync, f.key, err)
		}
	}
	return st, nil
}

// SaveSettings overwrites the synced configuration
func (s *Storage) SaveSettings(ctx context.Context, st domain.Settings) error {
	values := map[string]string{
		KeySlackToken:          st.SlackToken,
		KeyAppToken:            st.AppToken,
		KeyChannelName:         st.ChannelName,
		KeyBitbucketURL:        st.BitbucketURL,
		KeyMergeButtonSelector: st.MergeButtonSelector,
		KeyAllowedPhrases:      st.AllowedPhrases,
		KeyDisallowedPhrases:   st.DisallowedPhrases,
		KeyExceptionPhrases:    st.ExceptionPhrases,
	}
	for key, v := range values {
		if err := s.setJSON(ctx, repo.AreaSync, key, v); err != nil {
			return err
		}
	}
	return nil
}

// Phrases resolves the configured phrase sets
func (s *Storage) Phrases(ctx context.Context) (domain.PhraseSets, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return domain.PhraseSets{}, err
	}
	return st.Phrases(), nil
}

// Messages returns the stored message list, newest first
func (s *Storage) Messages(ctx context.Context) ([]domain.ProcessedMessage, error) {
	var msgs []domain.ProcessedMessage
	if _, err := s.getJSON(ctx, repo.AreaLocal, KeyMessages, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SetMessages persists the full message list
func (s *Storage) SetMessages(ctx context.Context, msgs []domain.ProcessedMessage) error {
	if msgs == nil {
		msgs = []domain.ProcessedMessage{}
	}
	return s.setJSON(ctx, repo.AreaLocal, KeyMessages, msgs)
}

// LastMatchingMessage returns the cached classifier match (nil if none)
func (s *Storage) LastMatchingMessage(ctx context.Context) (*domain.ProcessedMessage, error) {
	var m domain.ProcessedMessage
	ok, err := s.getJSON(ctx, repo.AreaLocal, KeyLastMatchingMessage, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// SetLastMatchingMessage persists the classifier match; nil stores null
func (s *Storage) SetLastMatchingMessage(ctx context.Context, m *domain.ProcessedMessage) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyLastMatchingMessage, m)
}

// StatusRecord returns the persisted status record (nil if none)
func (s *Storage) StatusRecord(ctx context.Context) (*domain.MergeStatusInfo, error) {
	var info domain.MergeStatusInfo
	ok, err := s.getJSON(ctx, repo.AreaLocal, KeyLastKnownMergeState, &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// SetStatusRecord overwrites the status record
func (s *Storage) SetStatusRecord(ctx context.Context, info *domain.MergeStatusInfo) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyLastKnownMergeState, info)
}

// ChannelCache returns the cached channel id and the channel name it was resolved for
func (s *Storage) ChannelCache(ctx context.Context) (id, name string, err error) {
	if id, err = s.getString(ctx, repo.AreaLocal, KeyChannelID); err != nil {
		return "", "", err
	}
	if name, err = s.getString(ctx, repo.AreaLocal, KeyCachedChannelName); err != nil {
		return "", "", err
	}
	return id, name, nil
}

// SetChannelCache stores a resolved channel id
func (s *Storage) SetChannelCache(ctx context.Context, id, name string) error {
	if err := s.setJSON(ctx, repo.AreaLocal, KeyChannelID, id); err != nil {
		return err
	}
	return s.setJSON(ctx, repo.AreaLocal, KeyCachedChannelName, name)
}

// ClearChannelID drops the cached channel id
func (s *Storage) ClearChannelID(ctx context.Context) error {
	return s.kv.Remove(ctx, repo.AreaLocal, KeyChannelID)
}

// TeamID returns the stored workspace id
func (s *Storage) TeamID(ctx context.Context) (string, error) {
	return s.getString(ctx, repo.AreaLocal, KeyTeamID)
}

// SetTeamID stores the workspace id
func (s *Storage) SetTeamID(ctx context.Context, teamID string) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyTeamID, teamID)
}

// FeatureEnabled returns the merge guard flag; absent means enabled
func (s *Storage) FeatureEnabled(ctx context.Context) (bool, error) {
	enabled := true
	if _, err := s.getJSON(ctx, repo.AreaLocal, KeyFeatureEnabled, &enabled); err != nil {
		return true, err
	}
	return enabled, nil
}

// SetFeatureEnabled stores the merge guard flag
func (s *Storage) SetFeatureEnabled(ctx context.Context, enabled bool) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyFeatureEnabled, enabled)
}

// ReactivationTime returns the pending reactivation in epoch-ms (0 if none)
func (s *Storage) ReactivationTime(ctx context.Context) (int64, error) {
	var ms int64
	_, err := s.getJSON(ctx, repo.AreaLocal, KeyReactivationTime, &ms)
	return ms, err
}

// SetReactivationTime stores a pending reactivation in epoch-ms
func (s *Storage) SetReactivationTime(ctx context.Context, ms int64) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyReactivationTime, ms)
}

// ClearReactivationTime drops the pending reactivation
func (s *Storage) ClearReactivationTime(ctx context.Context) error {
	return s.kv.Remove(ctx, repo.AreaLocal, KeyReactivationTime)
}

// LastConnectTime returns when the feed last opened (zero if never)
func (s *Storage) LastConnectTime(ctx context.Context) (time.Time, error) {
	var ms int64
	ok, err := s.getJSON(ctx, repo.AreaLocal, KeyLastConnectTime, &ms)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// SetLastConnectTime stores when the feed opened
func (s *Storage) SetLastConnectTime(ctx context.Context, t time.Time) error {
	return s.setJSON(ctx, repo.AreaLocal, KeyLastConnectTime, t.UnixMilli())
}
