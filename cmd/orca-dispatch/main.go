package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/EternisAI/orca/internal/transport"
	"github.com/spf13/cobra"
)

var AppVersion string

func main() {
	root := rootCmd()
	root.AddCommand(certsCmd())
	root.AddCommand(hashKeyCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		command    string
		client     string
		files      string
		format     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "orca-dispatch",
		Short: "Send a command to one registered agent and print its output",
		Example: `  orca-dispatch -i build-01 -c "uname -a"
  orca-dispatch -i 10.0.0.12 -c "sh deploy.sh" --files deploy.sh,app.tar.gz -o json`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(format) {
				return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := runDispatch(ctx, cfg, dispatch.Request{
				Target:    client,
				Command:   command,
				FilePaths: dispatch.ParseFileList(files),
			})
			if result != nil {
				if rerr := render(cmd.OutOrStdout(), format, result); rerr != nil {
					return errors.Join(err, rerr)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "shell command to run on the agent")
	cmd.Flags().StringVarP(&client, "client", "i", "", "target agent: id, ip, hostname or MAC address")
	cmd.Flags().StringVar(&files, "files", "", "comma-separated local files to attach")
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to application.yaml (default: ORCA_CONFIG or ./application.yaml)")
	_ = cmd.MarkFlagRequired("command")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runDispatch(ctx context.Context, cfg *Config, req dispatch.Request) (*dispatch.Result, error) {
	pool, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer pool.Close()

	tlsConfig, err := cfg.Dispatch.TLS.ClientTLS()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	dispatcher := dispatch.New(cfg.Dispatch,
		identity.NewStore(pool),
		audit.NewStore(pool),
		transport.NewDialer(tlsConfig, cfg.Dispatch.ConnectTimeout))

	result, err := dispatcher.Dispatch(ctx, req)
	if err != nil {
		slog.Error("Dispatch failed", "client", req.Target, "error", err)
	}
	return result, err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			v := AppVersion
			if v == "" {
				v = "dev"
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
		},
	}
}
