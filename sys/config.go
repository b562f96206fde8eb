package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything loaded from the environment at startup.
type Config struct {
	DiscordToken string
	GuildID      string
	DatabasePath string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string
	SpotifyTokenFile    string

	GeniusToken string

	Silent bool
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	tokenFile := os.Getenv("SPOTIFY_TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = "./data/spotify_token.json"
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		GuildID:             os.Getenv("GUILD_ID"),
		DatabasePath:        fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000", dbPath),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRedirectURI:  os.Getenv("SPOTIFY_REDIRECT_URI"),
		SpotifyTokenFile:    tokenFile,
		GeniusToken:         os.Getenv("GENIUS_TOKEN"),
		Silent:              silent,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return fmt.Errorf(MsgConfigMissingSpotify)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	return nil
}

// GetProjectName resolves a human name for this process, used for the
// database file, the log file and startup messages.
func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "auxparty"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
