package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-sync/channel"
	"chat-sync/domain"
	"chat-sync/identity"
	"chat-sync/internal"
	"chat-sync/moderation"
	"chat-sync/observability"
	"chat-sync/outbound"
	"chat-sync/presence"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/search"
	"chat-sync/services"
	"chat-sync/sink"
	"chat-sync/snapshot"
	"chat-sync/typing"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the session lifecycle, and centralizes
// error reporting, so every defer (database close, worker teardown) executes
// before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Identity: the session token carries who we are.
	session, err := identitySession(config)
	if err != nil {
		return exitConfig, err
	}
	self := session.User
	log.Info("session opened", "user", self.ID, "name", self.Name)

	// 3. Database (BadgerDB) for the local message cache
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 4. Core session components
	engine := runtime.NewEngine(log, self)
	presenceTracker := presence.NewTracker()
	typingIndicator := typing.NewIndicator(config.TypingTTL)
	pipeline := outbound.NewPipeline(log, self, config.SendTimeout)
	stats := observability.NewSyncStats()

	liveChannel := channel.NewLiveChannel(
		log,
		channel.WebsocketDialer(config.ChannelURL, config.SessionToken),
		config.ReconnectBaseDelay,
		config.ReconnectMaxDelay,
		config.BufferSize,
	)
	loader := snapshot.NewLoader(log, config.SnapshotBaseURL, config.SessionToken, nil)

	index, err := search.NewInMemoryIndex(log)
	if err != nil {
		return exitRuntime, fmt.Errorf("search index failed to open: %w", err)
	}
	defer func() { _ = index.Close() }()

	opts := runtime.Options{
		BufferSize:     config.BufferSize,
		SweepInterval:  config.SweepInterval,
		SinkTimeout:    config.SinkTimeout,
		RetryBaseDelay: config.SnapshotRetryBaseDelay,
		RetryMaxDelay:  config.SnapshotRetryMaxDelay,
	}
	if sanitize, err := buildSanitizer(config); err != nil {
		return exitConfig, err
	} else if sanitize != nil {
		opts.Sanitize = sanitize
	}

	sup := workers.NewSupervisor(log)
	orchestrator := runtime.NewOrchestrator(
		log, self, engine, presenceTracker, typingIndicator, pipeline,
		liveChannel, loader, sup, stats, opts,
	)

	messageCache := repositories.NewMessageCache(db, log, config.LimitMessages)
	orchestrator.AddSinks(
		sink.NewCacheSink(messageCache, log),
		sink.NewIndexSink(index, log),
	)

	service := services.NewSyncService(self, orchestrator, engine, presenceTracker, typingIndicator, index)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Debug inspector over the cache + live stats
	internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.DefaultMapper, stats.StatsProvider)
	log.Info("debug inspector started", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))

	// 7. Start the session. Start blocks until shutdown, so it runs beside
	// the terminal loop and reports through an error channel.
	errChan := make(chan error, 1)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("session failed to start: %w", err)
		}
	}()

	go terminalLoop(ctx, service, self)

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return exitOK, nil
}

// terminalLoop is a minimal interactive surface over the service facade:
// plain lines go to the open conversation, slash commands do the rest.
func terminalLoop(ctx context.Context, service services.ISyncService, self domain.Participant) {
	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" chat-sync // %s ", self.Name))
	fmt.Println(header)
	fmt.Println("Commands: /list  /open <id>  /search <query>  /quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var current domain.ConversationID
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/quit":
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
				return
			case line == "/list":
				for _, preview := range service.Conversations() {
					marker := " "
					if preview.ID == current {
						marker = "*"
					}
					fmt.Printf("%s %-12s %-16s %-24s %s\n",
						marker, preview.ID, preview.Friend.Name, preview.Preview, preview.StatusText)
				}
			case strings.HasPrefix(line, "/open "):
				current = domain.ConversationID(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
				service.JoinConversation(current)
				for _, msg := range service.Timeline(current) {
					renderMessage(self.ID, msg)
				}
			case strings.HasPrefix(line, "/search "):
				hits, err := service.Search(ctx, strings.TrimPrefix(line, "/search "), 10)
				if err != nil {
					fmt.Println(color.Red.Render("search failed: " + err.Error()))
					continue
				}
				for _, hit := range hits {
					fmt.Printf("%-12s %-16s [%s] %s\n", hit.Conversation, hit.Sender, hit.Lang, hit.Text)
				}
			case current == "":
				fmt.Println("No conversation open. Use /list then /open <id>.")
			default:
				service.SendMessage(current, line, nil)
				service.NotifyTyping(current)
			}
		}
	}
}

func renderMessage(self domain.UserID, msg domain.Message) {
	who := msg.SenderID
	text := msg.Text
	if msg.HasImage() && text == "" {
		text = "[image]"
	}
	stamp := msg.EffectiveTime().Format("15:04:05")
	if who == self {
		fmt.Println(color.Cyan.Render(fmt.Sprintf("%s you: %s (%s)", stamp, text, msg.State)))
		return
	}
	fmt.Printf("%s %s: %s\n", stamp, who, text)
}

func identitySession(config internal.Config) (identity.Session, error) {
	session, err := identity.ParseSession(config.SessionToken, []byte(config.SessionKey))
	if err != nil {
		return identity.Session{}, fmt.Errorf("session token rejected: %w", err)
	}
	return session, nil
}

func buildSanitizer(config internal.Config) (func(string) string, error) {
	if config.CensoredWords == "" {
		return nil, nil
	}
	replacement := '*'
	if config.CharReplacement != "" {
		r, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return nil, err
		}
		replacement = r
	}
	moderator, err := moderation.NewModerator(strings.Split(config.CensoredWords, ","), replacement)
	if err != nil {
		return nil, fmt.Errorf("moderation setup failed: %w", err)
	}
	return moderator.Censor, nil
}
