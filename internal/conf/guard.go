package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

// GuardConfig is the optional guard.yaml with channel, page and phrase seeds
type GuardConfig struct {
	Slack   SlackGuard  `yaml:"slack"`
	Page    PageGuard   `yaml:"page"`
	Phrases PhraseGuard `yaml:"phrases"`
}

// SlackGuard names the watched channel
type SlackGuard struct {
	Channel string `yaml:"channel"`
}

// PageGuard describes the code-review page
type PageGuard struct {
	URLPattern          string `yaml:"url_pattern"`
	MergeButtonSelector string `yaml:"merge_button_selector"`
}

// PhraseGuard holds the three phrase lists
type PhraseGuard struct {
	Allowed    []string `yaml:"allowed"`
	Disallowed []string `yaml:"disallowed"`
	Exception  []string `yaml:"exception"`
}

// LoadGuardConfig loads guard.yaml. Without an explicit path the usual
// locations are tried; finding none yields an empty config.
func LoadGuardConfig(configPath string) (*GuardConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/guard.yaml",
			"/etc/slack-merge-gate/guard.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "guard.yaml"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(homeDir, ".slack-merge-gate", "guard.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}
	if data == nil {
		if configPath != "" {
			return &GuardConfig{}, fmt.Errorf("guard config %s not readable", configPath)
		}
		return &GuardConfig{}, nil
	}

	var config GuardConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return &GuardConfig{}, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	logging.Logger().Info("guard_config_loaded", "path", loadedPath)
	return &config, nil
}

// Settings converts the file into settings seeds.
// Phrase lists are stored comma-joined like the options page does.
func (g *GuardConfig) Settings() domain.Settings {
	if g == nil {
		return domain.Settings{}
	}
	return domain.Settings{
		ChannelName:         strings.TrimSpace(g.Slack.Channel),
		BitbucketURL:        strings.TrimSpace(g.Page.URLPattern),
		MergeButtonSelector: strings.TrimSpace(g.Page.MergeButtonSelector),
		AllowedPhrases:      joinPhrases(g.Phrases.Allowed),
		DisallowedPhrases:   joinPhrases(g.Phrases.Disallowed),
		ExceptionPhrases:    joinPhrases(g.Phrases.Exception),
	}
}

func joinPhrases(list []string) string {
	var out []string
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return domain.JoinPhraseList(out)
}
