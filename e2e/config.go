package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SnapshotBaseURL string `envconfig:"E2E_SNAPSHOT_BASE_URL"`
	ChannelURL      string `envconfig:"E2E_CHANNEL_URL"`
	SessionToken    string `envconfig:"E2E_SESSION_TOKEN"`
	SessionKey      string `envconfig:"E2E_SESSION_KEY"`
	// E2E_TARGET_CONVERSATION is the conversation the scenario sends into.
	TargetConversation string `envconfig:"E2E_TARGET_CONVERSATION"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
