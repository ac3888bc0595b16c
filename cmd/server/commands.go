package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/liveboard-server/internal/app"
	"github.com/vovakirdan/liveboard-server/internal/auth"
	"github.com/vovakirdan/liveboard-server/internal/config"
	"github.com/vovakirdan/liveboard-server/internal/log"
)

type serveFlags struct {
	configPath string
	host       string
	port       int
	logLevel   string
	staticDir  string
}

func newRootCmd() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "liveboard",
		Short:         "Single-room live broadcast board",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags)
		},
	}
	bindServeFlags(root, flags)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags)
		},
	}
	bindServeFlags(serveCmd, flags)

	root.AddCommand(serveCmd, newHashPasswordCmd())
	return root
}

func bindServeFlags(cmd *cobra.Command, flags *serveFlags) {
	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "path to config.yaml")
	f.StringVar(&flags.host, "host", "", "listen host")
	f.IntVarP(&flags.port, "port", "p", 0, "listen port")
	f.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&flags.staticDir, "static-dir", "", "directory with the browser client")
}

func serve(cmd *cobra.Command, flags *serveFlags) error {
	bootLogger := log.New("info", "console")

	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = flags.host
	}
	if f.Changed("port") {
		cfg.Port = flags.port
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if f.Changed("static-dir") {
		cfg.StaticDir = flags.staticDir
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin_password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
