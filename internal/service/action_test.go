package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		tabID string
		want  Action
	}{
		{"fetch", `{"action":"fetchNewMessages"}`, "", FetchNewMessages{}},
		{"reconnect", `{"action":"reconnect"}`, "", Reconnect{}},
		{"toggle off", `{"action":"featureToggleChanged","enabled":false}`, "", FeatureToggleChanged{Enabled: false}},
		{"toggle on", `{"action":"featureToggleChanged","enabled":true}`, "", FeatureToggleChanged{Enabled: true}},
		{"countdown done", `{"action":"countdownCompleted"}`, "", CountdownCompleted{}},
		{"countdown status", `{"action":"getCountdownStatus"}`, "", GetCountdownStatus{}},
		{"update button", `{"action":"updateMergeButton"}`, "", UpdateMergeButton{}},
		{"tab from body", `{"action":"bitbucketTabLoaded","tabId":"t1"}`, "", BitbucketTabLoaded{TabID: "t1"}},
		{"tab from sender wins", `{"action":"bitbucketTabLoaded","tabId":"t1"}`, "t2", BitbucketTabLoaded{TabID: "t2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tt.raw), tt.tabID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAction_Rejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"action":"selfDestruct"}`,
		`{"action":"featureToggleChanged"}`,
		`{"action":"bitbucketTabLoaded"}`,
	} {
		_, err := DecodeAction([]byte(raw), "")
		assert.Error(t, err, raw)
	}
}
