// TODO: refactor [RootCmd] to be a func
package main

import (
	"github.com/spf13/cobra"

	"github.com/carolinespringscc/cricket-agent/cmd"
	"github.com/carolinespringscc/cricket-agent/internal/echo"
)

// RootCmd is the root command for the cricket-agent CLI
var RootCmd = &cobra.Command{
	Use:   "cricket-agent",
	Short: "Cricket club question-answering service toolkit",
	Long: echo.HeaderStyle().Render("Cricket Agent") + "\n\n" +
		"Serves natural-language questions about club fixtures, ladders,\n" +
		"and rosters, backed by a PlayHQ-sourced RAG index.",
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Path to config file (default: conf.toml)")
	RootCmd.AddCommand(cmd.DbCmd())
	RootCmd.AddCommand(cmd.ServerCmd())
	RootCmd.AddCommand(cmd.SyncCmd())
	RootCmd.AddCommand(cmd.CacheCmd())
}
