// Command clower serves the site builder API and runs one-off generate,
// deploy and password tasks against the same data directory.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/clower"
	"github.com/eringen/clower/content"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type cli struct {
	cfgFile string
	debug   bool

	cfg    config
	logger *zap.Logger
	opts   []clower.Option
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "clower",
		Short:         "clower - a self-hosted site builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ./clower.yaml)")
	pf.BoolVar(&c.debug, "debug", false, "human-readable debug logging")
	pf.String("data", "", "data directory (default data)")
	pf.String("output", "", "output directory (default public)")
	pf.String("driver", "", "storage driver: file or sqlite")

	root.AddCommand(
		c.serveCmd(),
		c.generateCmd(),
		c.deployCmd(),
		c.passwdCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if c.logger == nil {
		if c.debug {
			c.logger, err = zap.NewDevelopment()
		} else {
			c.logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
	}
	return nil
}

// app builds and initializes an App. The caller closes it.
func (c *cli) app(ctx context.Context) (*clower.App, error) {
	opts := []clower.Option{clower.WithLogger(c.logger)}
	if pw := c.cfg.DeployPassword; pw != "" {
		opts = append(opts, clower.WithSecretStore(content.StaticSecrets{content.DeployPasswordSecret: pw}))
	}
	a := clower.New(c.cfg.Site, append(opts, c.opts...)...)
	if err := a.Init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and admin server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- a.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			c.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :3000, or :$PORT)")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build the static site into the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Generator.Generate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d pages into %s\n", n, a.Config.OutputDir)
			if !watch {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes\n", a.Config.DataDir)
			return a.Generator.Watch(ctx, []string{a.Config.DataDir}, 300*time.Millisecond)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild when the data directory changes")
	return cmd
}

func (c *cli) deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Generate the site and upload it over SFTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Deployer.Deploy(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deployed", a.Config.OutputDir)
			return nil
		},
	}
}

func (c *cli) passwdCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set the admin username and password",
		Long: `Set the admin password, and optionally the username. Without
--password the new password is read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				pw, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = pw
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Settings.Update(cmd.Context(), content.SettingsUpdate{
				Admin: &content.AdminUpdate{Username: username, Password: password},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", st.Admin.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "new admin username (default unchanged)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new admin password")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clower version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clower %s\n", version)
		},
	}
}
