package main

import (
	"os"

	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
)

//Path to an optional YAML config file, shared by every subcommand
var configFile string

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

//NewRootCmd creates the root command for the reactbot CLI
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reactbot",
		Short: "Discord reaction-role and moderation bot",
		Long: `reactbot hands out roles to members who react to designated messages or press the claim
button attached to them. It can also post to and clear channels on behalf of permitted roles.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewDeployCommandsCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

//NewVersionCmd creates the version subcommand
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(version.Print("reactbot"))
			return nil
		},
	}
}
