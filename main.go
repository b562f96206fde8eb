package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"

	"github.com/levruta/auxparty/lyrics"
	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/spotify"
	"github.com/levruta/auxparty/sys"
)

const BotPIDFile = ".bot.pid"

// Shared subsystems, wired once during run and read by the handler files.
var (
	Engine    *session.Engine
	Spotify   *spotify.Client
	Lyrics    *lyrics.Client
	BotClient bot.Client
)

func main() {
	// 0. Recover from panics (LogFatal uses panic to ensure defers run)
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok {
				fmt.Fprintf(os.Stderr, sys.MsgPanicFatal, msg)
				os.Exit(1)
			}
			panic(r)
		}
	}()

	// 1. Load configuration early
	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.LogFatal(sys.MsgConfigFailedToLoad, err)
	}

	silent := flag.Bool("silent", false, "Disable all log output")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	flag.Parse()

	// 2. Initialize Logger (handle flags)
	logName := sys.InitLogger(*silent || cfg.Silent, true)

	// 3. Try to detect bot name
	botName := sys.GetProjectName()

	// 4. Log Starting Message
	sys.LogInfo(sys.MsgBotStarting, botName)

	// 5. Initialize Database & Logs
	sys.LogInfo(sys.MsgInitializing, filepath.Base(cfg.DatabasePath))
	if logName != "" {
		sys.LogInfo(sys.MsgInitializing, filepath.Base(logName))
	}

	if err := sys.InitDatabase(context.Background(), cfg.DatabasePath); err != nil {
		sys.LogFatal(sys.MsgDatabaseInitFail, err)
	}
	defer sys.CloseDatabase()

	// 6. Open or create the PID file
	f, err := os.OpenFile(BotPIDFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		sys.LogFatal(sys.MsgPIDOpenFail, err)
	}
	defer f.Close()

	// 7. Try to acquire an exclusive lock
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}

		if err != syscall.EWOULDBLOCK {
			sys.LogFatal(sys.MsgPIDLockFail, err)
		}

		var oldPid int
		_, _ = f.Seek(0, 0)
		if _, scanErr := fmt.Fscanf(f, "%d", &oldPid); scanErr != nil {
			_ = f.Close()
			<-ticker.C
			f, _ = os.OpenFile(BotPIDFile, os.O_RDWR|os.O_CREATE, 0644)
			continue
		}

		if oldPid == os.Getpid() {
			break
		}

		process, procErr := os.FindProcess(oldPid)
		if procErr != nil {
			<-ticker.C
			continue
		}

		sys.LogInfo(sys.MsgBotKillingOld, oldPid)
		_ = process.Signal(syscall.SIGTERM)

		terminated := false
		timeout := time.After(5 * time.Second)
	waitLoop:
		for {
			select {
			case <-ticker.C:
				if err := process.Signal(syscall.Signal(0)); err != nil {
					terminated = true
					break waitLoop
				}
			case <-timeout:
				break waitLoop
			}
		}

		if !terminated {
			sys.LogWarn(sys.MsgBotStubbornOld, oldPid)
			_ = process.Signal(syscall.SIGKILL)

			killTimeout := time.After(2 * time.Second)
			killTicker := time.NewTicker(50 * time.Millisecond)
			defer killTicker.Stop()

		killWait:
			for {
				select {
				case <-killTicker.C:
					if err := process.Signal(syscall.Signal(0)); err != nil {
						break killWait
					}
				case <-killTimeout:
					sys.LogWarn(sys.MsgBotKillResistant, oldPid)
					break killWait
				}
			}
		}

		sys.LogInfo(sys.MsgBotOldTerminated)
	}

	// 8. We have the lock. Write our PID.
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d", os.Getpid())
	_ = f.Sync()

	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = os.Remove(BotPIDFile)
	}()

	// 9. Run bot (blocks until shutdown signal)
	if err := run(cfg, *silent, *skipReg); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}
}

func run(cfg *sys.Config, silent bool, skipReg bool) error {
	// 1. Setup global context that responds to shutdown signals
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	AppContext = ctx

	// 2. Authorize against Spotify before anything user-facing exists
	Spotify = spotify.NewClient(cfg)
	if err := Spotify.Authorize(ctx); err != nil {
		sys.LogError(sys.MsgSpotifyAuthFail, err)
		return err
	}
	// Announced once the gateway is up so the two "ready" lines sit together.
	OnClientReady(func(ctx context.Context, _ bot.Client) {
		logSpotifyAccount(ctx)
	})

	Lyrics = lyrics.NewClient(cfg.GeniusToken)

	// 3. Build the session engine around the persisted admin list
	admins, err := sys.GetAdmins(ctx)
	if err != nil {
		return err
	}
	Engine = session.NewEngine(Spotify, dmNotifier{},
		session.WithAdmins(admins),
		session.WithQueuedHook(func(userID snowflake.ID, uri, label string) {
			if err := sys.AddTrackHistory(ctx, uri, label, userID); err != nil {
				sys.LogDatabase("Failed to record track history: %v", err)
			}
		}),
	)

	// 4. Create disgo client with retries for network resilience
	var client bot.Client
	for i := 1; i <= 5; i++ {
		client, err = CreateClient(ctx, cfg)
		if err == nil {
			break
		}
		if i == 5 {
			return fmt.Errorf("failed to create Discord client after %d attempts: %w", i, err)
		}
		sys.LogWarn("Failed to create Discord client (attempt %d/5): %v. Retrying in 5s...", i, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	defer client.Close(ctx)
	BotClient = client

	// 5. Command Registration
	if !skipReg {
		if err := RegisterCommands(client, cfg.GuildID); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	}

	// 6. Connect to Gateway
	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf(sys.MsgBotGatewayFail, err)
	}

	<-ctx.Done()
	if !silent {
		fmt.Println()
	}

	sys.LogInfo(sys.MsgDaemonShutdown)
	ShutdownDaemons(context.Background())

	// A session left running is ended so members aren't stranded with
	// dead menus.
	if Engine.IsActive() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_ = Engine.EndSession(shutdownCtx)
		cancel()
	}

	sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())

	return nil
}

func logSpotifyAccount(ctx context.Context) {
	name, err := Spotify.CurrentUser(ctx)
	if err != nil {
		sys.LogWarn("Could not read Spotify profile: %v", err)
		return
	}
	activeDevice := "none"
	volume := 0
	if devices, err := Spotify.Devices(ctx); err == nil {
		for _, d := range devices {
			if d.Active {
				activeDevice = d.Name
				volume = d.Volume
			}
		}
	}
	sys.LogSpotify(sys.MsgSpotifyAuthorized, name, activeDevice, volume)
}
