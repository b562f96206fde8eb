package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	// Style definitions
	infoColor     = color.New(color.FgHiBlack)
	warnColor     = color.New(color.FgHiYellow)
	errorColor    = color.New(color.FgHiRed)
	fatalColor    = color.New(color.FgHiRed, color.Bold)
	databaseColor = color.New(color.FgHiBlack)
	sessionColor  = color.New(color.FgHiMagenta)
	queueColor    = color.New(color.FgHiMagenta)
	pollColor     = color.New(color.FgHiMagenta)
	spotifyColor  = color.New(color.FgHiGreen)
	menuColor     = color.New(color.FgHiMagenta)
	lyricsColor   = color.New(color.FgHiMagenta)

	IsSilent  = false
	LogToFile = false

	// Global default logger
	Logger *slog.Logger

	// Log file handling
	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	// Initialize with a default handler immediately (Stdout only)
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger and returns the log
// file name when file logging is enabled.
func InitLogger(silent bool, saveToFile bool) string {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	// Clean up previous file if it exists (e.g. during reload)
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error
	logName := ""

	if LogToFile {
		exePath, exeErr := os.Executable()
		logName = "auxparty.log"
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
			logName = ""
		} else {
			writer = io.MultiWriter(os.Stdout, logFile)
		}
	}

	// Force colors to be enabled even if writing to a file/pipe avoids detection
	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	return logName
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Log Functions ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

// LogFatal logs at a custom fatal level and panics so deferred cleanup in
// main still runs.
func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogSession(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "session"))
}

func LogQueue(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "queue"))
}

func LogPoll(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "poll"))
}

func LogSpotify(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "spotify"))
}

func LogMenu(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "menu"))
}

func LogLyrics(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "lyrics"))
}

// --- Custom Slog Handler ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format("15:04:05")
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4: // Fatal
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
		levelColor = infoColor
	}

	// Extract component if present
	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	// Output: 15:04:05 [INFO] [COMPONENT] Message
	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", compColor.Sprintf("[%s] %s", component, r.Message))
	} else {
		fmt.Fprintf(h.w, " %s\n", levelColor.Sprintf("[%s] %s", levelStr, r.Message))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "SESSION":
		return sessionColor
	case "QUEUE":
		return queueColor
	case "POLL":
		return pollColor
	case "SPOTIFY":
		return spotifyColor
	case "MENU":
		return menuColor
	case "LYRICS":
		return lyricsColor
	default:
		return color.New(color.FgCyan)
	}
}

// @core
const (
	// Configuration
	MsgConfigFailedToLoad   = "Failed to load config: %v"
	MsgConfigMissingToken   = "DISCORD_TOKEN is not set in .env file"
	MsgConfigMissingSpotify = "SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET are not set in .env file"

	// Data layer
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDatabaseInitFail    = "Failed to initialize database: %v"

	// Bot Lifecycle
	MsgBotStarting      = "Starting %s..."
	MsgBotReady         = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown      = "Shutting down %s..."
	MsgBotKillingOld    = "Killing running instance... (PID: %d)"
	MsgBotKillFail      = "Failed to kill old instance: %v"
	MsgBotOldTerminated = "Old instance terminated."
	MsgBotRegisterFail  = "Command registration failed: %v"
	MsgGenericError     = "%v"
	MsgInitializing     = "Initializing %s..."
	MsgPIDOpenFail      = "Failed to open PID file: %v"
	MsgPIDLockFail      = "Failed to lock PID file: %v"
	MsgBotStubbornOld   = "Old process %d is stubborn. Sending SIGKILL..."
	MsgBotKillResistant = "Process %d still exists after SIGKILL"
	MsgBotGatewayFail   = "failed to open gateway: %w"
	MsgDaemonStarting   = "Starting..."
	MsgDaemonShutdown   = "Shutting down all daemons..."
	MsgPanicFatal       = "\n[FATAL] %s\n"
)

// @session
const (
	MsgSessionStarted        = "Session started by %s (%s), token issued"
	MsgSessionStartNoDevice  = "Session start refused: no active playback device"
	MsgSessionJoined         = "%s (%s) joined the session"
	MsgSessionJoinBadToken   = "Join attempt with invalid token by %s"
	MsgSessionModeChanged    = "Access mode changed to %s"
	MsgSessionEnded          = "Session ended, %d member(s) notified"
	MsgSessionMemberRemoved  = "Member %s removed from session"
	MsgSessionAdminPromoted  = "%s (%s) promoted to admin"
	MsgSessionAdminDemoted   = "Admin rights revoked for %s"
	MsgSessionFarewellFailed = "Failed to deliver farewell to %s: %v"
)

// @queue
const (
	MsgQueueTrackAdded   = "Queued %s for %s"
	MsgQueueAddFailed    = "Queue add failed for %s: %v"
	MsgQueueResyncStale  = "Local queue mirror stale, cleared %d entr(y/ies)"
	MsgQueueResyncEffect = "Local queue mirror advanced by %d entr(y/ies)"
)

// @poll
const (
	MsgPollOpened        = "Poll opened for %s (1/%d)"
	MsgPollVote          = "Vote recorded for %s (%d/%d)"
	MsgPollResolved      = "Poll for %s resolved, track queued"
	MsgPollResolveFailed = "Poll for %s reached threshold but queue add failed: %v"
	MsgPollExpired       = "Poll for %s expired unresolved"
	MsgPollBroadcastFail = "Failed to deliver poll ballot to %s: %v"
)

// @menu
const (
	MsgMenuRefreshFail = "Failed to refresh menu for %s: %v"
	MsgMenuRefreshTick = "Refreshed %d member menu(s)"
)

// @spotify
const (
	MsgSpotifyAuthorized     = "Authorized as %s, active device: %s (volume %d%%)"
	MsgSpotifyAuthFail       = "Spotify authorization failed: %v"
	MsgSpotifyTokenRefreshed = "Access token refreshed"
	MsgSpotifyReleased       = "Spotify client released"
)
