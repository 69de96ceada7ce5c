package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amirbrooks/tasker-chat/internal/api"
	"github.com/amirbrooks/tasker-chat/internal/chat"
	"github.com/amirbrooks/tasker-chat/internal/config"
	"github.com/amirbrooks/tasker-chat/internal/store"
)

func newServeCmd(gf *GlobalFlags) *cobra.Command {
	var addr, staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the task server.

Examples:
  tasker serve
  tasker serve --addr 0.0.0.0:8080 --static-dir ./web`,
		Args: cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(gf)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if staticDir != "" {
				cfg.Server.StaticDir = staticDir
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory holding index.html (overrides server.static_dir)")
	return cmd
}

func loadConfig(gf *GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{File: gf.ConfigFile, EnvFile: gf.EnvFile})
	if err != nil {
		return nil, usageError("%v", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := store.New(store.Options{UndoTTL: cfg.Undo.TTL})
	translator, err := newTranslator(cfg.OpenAI)
	if err != nil {
		return err
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set; chat handles only the built-in command phrases")
	}
	ex := chat.NewExecutor(s, translator, logger)
	srv := api.NewServer(s, ex, api.Options{
		StaticDir:    cfg.Server.StaticDir,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Ledger().Run(ctx, cfg.Undo.PurgeInterval)
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx, cfg.Server.Addr)
	})
	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// newTranslator tries the local phrase rules first and falls back to the
// model for anything they decline.
func newTranslator(cfg config.OpenAIConfig) (chat.Translator, error) {
	prompt, err := chat.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	remote, err := chat.NewOpenAITranslator(chat.OpenAIOptions{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, err
	}
	return chat.Chain{chat.LocalTranslator{}, remote}, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
