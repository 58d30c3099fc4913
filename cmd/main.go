package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/campus/pkg/agent"
	"github.com/xhad/campus/pkg/auth"
	cfgPkg "github.com/xhad/campus/pkg/config"
	"github.com/xhad/campus/server"
)

type options struct {
	configPath string
	serve      bool
	ingest     string
	logLevel   string
}

func main() {
	opts := parseFlags()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := cfgPkg.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "invalid config: %s\n", e.Error())
		}
		os.Exit(1)
	}
	setupLogging(cfg, opts.serve)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatal().Err(err).Msg("campus assistant failed")
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API instead of the interactive chat")
	flag.StringVar(&opts.ingest, "ingest", "", "URL or YouTube link to load before chatting")
	flag.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	flag.Parse()
	return opts
}

func setupLogging(cfg *cfgPkg.Config, serve bool) {
	level, _ := zerolog.ParseLevel(cfg.Log.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty || !serve {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(ctx context.Context, cfg *cfgPkg.Config, opts options) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.serve {
		return serve(ctx, cfg, a)
	}
	return chat(ctx, a, opts.ingest)
}

func serve(ctx context.Context, cfg *cfgPkg.Config, a *app) error {
	manager, err := auth.New(auth.Config{
		Secret:        cfg.Auth.Secret,
		AdminUser:     cfg.Auth.AdminUser,
		AdminPassword: cfg.Auth.AdminPassword,
		TTL:           cfg.Auth.TTL,
		SecureCookie:  cfg.Auth.SecureCookie,
		Google: auth.GoogleConfig{
			ClientID:     cfg.Auth.Google.ClientID,
			ClientSecret: cfg.Auth.Google.ClientSecret,
			RedirectURL:  cfg.Auth.Google.RedirectURL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth (set SESSION_SECRET_KEY): %w", err)
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, server.Deps{
		Agent:    a.agent,
		Sessions: agent.NewSessions(),
		Auth:     manager,
		Students: a.students,
		Events:   a.events,
	})
	return srv.Run(ctx)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// spin runs fn while a spinner is shown.
func spin[T any](description string, fn func() (T, error)) (T, error) {
	spinner := getSpinner(description)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()

	v, err := fn()
	close(done)
	spinner.Finish()
	fmt.Print("\r")
	return v, err
}

// chat is the interactive REPL. It uses the agent path with a single
// local session.
func chat(ctx context.Context, a *app, ingest string) error {
	state := agent.NewSessionState()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if ingest != "" {
		color.Blue("\nLoading %s\n", ingest)
		answer, err := spin("Fetching and indexing...", func() (*agent.Answer, error) {
			return a.agent.Run(ctx, state, ingest)
		})
		if err != nil {
			printError(err)
		} else {
			color.Green("✓ %s\n", answer.String())
		}
	}

	color.Cyan("\nAsk about students, paste a link, or say 'summarize' (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		answer, err := spin("Thinking...", func() (*agent.Answer, error) {
			return a.agent.Run(ctx, state, query)
		})
		if err != nil {
			printError(err)
			continue
		}
		assistantPrompt("Assistant: %s\n", answer.String())

		if ctx.Err() != nil {
			break
		}
	}

	return scanner.Err()
}

func printError(err error) {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		color.Red("Error: %s\n", agentErr.Message)
		log.Debug().Err(err).Msg("query failed")
		return
	}
	color.Red("Error: %v\n", err)
}
