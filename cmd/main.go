package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"gopkg.in/natefinch/lumberjack.v2"

	"quickslot/internal/config"
	"quickslot/internal/google"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "quickslot",
		Usage: "Find meeting times that work for every attendee.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a quickslot.yaml config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			findCommand(),
			holidaysCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			store, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			cfg, err := store.Config()
			if err != nil {
				return err
			}
			logger, closeLog := setupLogger(cfg.LogLevel, cfg.LogFile)
			defer closeLog.Close()
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				accountName = "default"
			}
			tokens := google.NewTokenStore(cfg.TokenDir)
			if err := tokens.Save(accountName, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokens.Path(accountName))
			return nil
		},
	}
}

// setupLogger builds the process logger. With a log file set, records also go to a
// rotating file.
func setupLogger(level, file string) (*slog.Logger, io.Closer) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotating)
		closer = rotating
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
