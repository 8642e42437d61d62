package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/gdid/internal/cmd/client"
	serverrun "github.com/rzbill/gdid/internal/cmd/server"
	cfgpkg "github.com/rzbill/gdid/internal/config"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gdid",
		Short:        "Global distributed ID authority and client",
		Long:         "gdid runs the block-allocating authority and offers client commands to generate identifiers.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("authority", "", "Authority gRPC address (default $GDID_AUTHORITY_ADDR or 127.0.0.1:50051)")

	// init
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := cfgpkg.WriteYAML(path, cfgpkg.Default()); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().String("config", "gdid.yaml", "Path of the configuration file to create")
	rootCmd.AddCommand(initCmd)

	// authority start
	authorityCmd := &cobra.Command{Use: "authority", Short: "Authority server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the authority (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			mode, err := pebblestore.ParseFsyncMode(fsyncMode)
			if err != nil {
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				GRPCAddr:      grpcAddr,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	startCmd.Flags().String("config", os.Getenv("GDID_CONFIG"), "Configuration file (JSON or YAML)")
	startCmd.Flags().String("data-dir", os.Getenv("GDID_DATA_DIR"), "Data directory (if not specified, uses OS-specific application data directory)")
	startCmd.Flags().String("grpc", ":50051", "gRPC listen address")
	startCmd.Flags().String("http", ":8080", "HTTP listen address for health, sequences and metrics (empty disables)")
	startCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	startCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	startCmd.Flags().String("log-format", "", "Log format: text|json (overrides config)")
	authorityCmd.AddCommand(startCmd)
	rootCmd.AddCommand(authorityCmd)

	clientcmd.AddCommands(rootCmd, func() string {
		if v, _ := rootCmd.PersistentFlags().GetString("authority"); v != "" {
			return v
		}
		return clientcmd.AuthorityAddrFromEnv()
	})
	return rootCmd
}
