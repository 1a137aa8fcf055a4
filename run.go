package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callummance/reactbot/bot"
	"github.com/callummance/reactbot/config"
	"github.com/callummance/reactbot/discord"
	"github.com/callummance/reactbot/metrics"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

//NewRunCmd creates the run subcommand, which connects to discord and serves events until interrupted
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to discord and start handling events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

//NewDeployCommandsCmd creates the deploy-commands subcommand, which registers the slash commands
func NewDeployCommandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-commands",
		Short: "Register the bot's slash commands with discord",
		Long: `Overwrite the application's slash commands. Commands are registered to the configured guild,
where they appear immediately, or globally when no guild is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return deployCommands(cmd, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logrus.SetLevel(cfg.Level())
	return cfg, nil
}

func run(cfg *config.Config) error {
	logrus.Infof("Starting reactbot %v", version.Info())
	logrus.Infof("Build context %v", version.BuildContext())

	reactBot, err := bot.Init(cfg)
	if err != nil {
		return fmt.Errorf("failed to start discord bot: %w", err)
	}

	var metricsErrs <-chan error
	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, reactBot.IsReady)
		metricsErrs, err = metricsServer.Start()
		if err != nil {
			reactBot.Close()
			return err
		}
	}

	logrus.Infof("Bot is now running. Press ^+C to exit.")
	addURL, err := reactBot.BotAddURL()
	if err != nil {
		logrus.Errorf("Failed to generate bot add URL due to error %v", err)
	} else {
		logrus.Infof("Go to `%v` to add bot to your server", addURL)
	}

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(closeChan)
	select {
	case sig := <-closeChan:
		logrus.Infof("Received %v, shutting down", sig)
	case err, ok := <-metricsErrs:
		if ok {
			logrus.Errorf("Shutting down as metrics server failed: %v", err)
		}
	}

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := metricsServer.Stop(ctx); err != nil {
			logrus.Warnf("Failed to stop metrics server cleanly: %v", err)
		}
		cancel()
	}
	reactBot.Close()
	fmt.Println("Goodbye!")
	return nil
}

func deployCommands(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("`%v` must be set to register slash commands", config.ClientIDEnvVar)
	}
	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		return err
	}
	registered, err := session.ApplicationCommandBulkOverwrite(cfg.ClientID, cfg.GuildID, bot.Commands())
	if err != nil {
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	if cfg.GuildID != "" {
		cmd.Printf("Registered %d guild commands to guild %v.\n", len(registered), cfg.GuildID)
	} else {
		cmd.Printf("Registered %d global commands. Global commands can take up to an hour to appear.\n", len(registered))
	}
	return nil
}
