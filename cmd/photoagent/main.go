// Command photoagent is a conversational assistant for a local photo library.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"photoagent/internal/config"
	"photoagent/internal/i18n"
	"photoagent/internal/logging"
)

// rootOptions 全局命令行参数
// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "photoagent",
		Short:         "Talk to your photo library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config JSON/JSONC")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		newChatCmd(opts),
		newServeCmd(opts),
		newIndexCmd(opts),
		newImportCmd(opts),
		newSearchCmd(opts),
		newDedupeCmd(opts),
		newInitCmd(),
		newPolicyCmd(),
	)
	return root
}

// load reads the configuration, selects the message language and installs the
// logger. toFile keeps logs off a terminal UI.
func (o *rootOptions) load(toFile bool) (config.Config, io.Closer, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	i18n.Init(cfg.Language)
	closer, err := logging.Setup(cfg.Log, cfg.Storage.BaseDir, toFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, closer, nil
}
