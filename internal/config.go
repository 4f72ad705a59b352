package internal

import (
	"fmt"
	"time"
)

type Config struct {
	SnapshotBaseURL string `env:"SNAPSHOT_BASE_URL,required=true"`
	ChannelURL      string `env:"CHANNEL_URL,required=true"`
	SessionToken    string `env:"SESSION_TOKEN,required=true"`
	SessionKey      string `env:"SESSION_KEY,required=true"`

	BufferSize             int           `env:"BUFFER_SIZE,required=true"`
	ReconnectBaseDelay     time.Duration `env:"RECONNECT_BASE_DELAY,required=true"`
	ReconnectMaxDelay      time.Duration `env:"RECONNECT_MAX_DELAY,required=true"`
	SnapshotRetryBaseDelay time.Duration `env:"SNAPSHOT_RETRY_BASE_DELAY,required=true"`
	SnapshotRetryMaxDelay  time.Duration `env:"SNAPSHOT_RETRY_MAX_DELAY,required=true"`
	SendTimeout            time.Duration `env:"SEND_TIMEOUT,required=true"`
	TypingTTL              time.Duration `env:"TYPING_TTL,required=true"`
	SweepInterval          time.Duration `env:"SWEEP_INTERVAL,required=true"`
	SinkTimeout            time.Duration `env:"SINK_TIMEOUT,required=true"`

	LimitMessages   *int   `env:"LIMIT_MESSAGES"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	LogLevel        string `env:"LOG_LEVEL,required=true"`
	DebugPort       int    `env:"DEBUG_PORT,required=true"`
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
