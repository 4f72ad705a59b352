package e2e

import (
	"fmt"
	"log/slog"
	"time"

	"chat-sync/channel"
	"chat-sync/identity"
	"chat-sync/snapshot"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSuite carries the live-server configuration and the shared helpers the
// scenarios build on. Scenarios skip themselves when no server is configured,
// so the suite stays safe to run in any environment.
type BaseSuite struct {
	suite.Suite
	Config Config
	Log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.Log = logs.GetLoggerFromString("debug")
}

// RequireLiveServers skips the running test unless both collaborators are
// reachable per configuration.
func (s *BaseSuite) RequireLiveServers() {
	if s.Config.SnapshotBaseURL == "" || s.Config.ChannelURL == "" {
		s.T().Skip("E2E_SNAPSHOT_BASE_URL / E2E_CHANNEL_URL not set, skipping live scenario")
	}
}

// Step prints a colorized header so multi-step scenarios read well in logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Session parses the configured token into the identity the scenario acts as.
func (s *BaseSuite) Session() identity.Session {
	session, err := identity.ParseSession(s.Config.SessionToken, []byte(s.Config.SessionKey))
	s.Require().NoError(err, "E2E_SESSION_TOKEN rejected")
	return session
}

// Loader builds a snapshot loader against the configured REST collaborator.
func (s *BaseSuite) Loader() *snapshot.Loader {
	return snapshot.NewLoader(s.Log, s.Config.SnapshotBaseURL, s.Config.SessionToken, nil)
}

// Channel builds a live channel against the configured socket collaborator.
func (s *BaseSuite) Channel() *channel.LiveChannel {
	return channel.NewLiveChannel(
		s.Log,
		channel.WebsocketDialer(s.Config.ChannelURL, s.Config.SessionToken),
		200*time.Millisecond,
		5*time.Second,
		64,
	)
}
