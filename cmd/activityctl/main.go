package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpggio/activitylog/internal/cli"
	"github.com/rpggio/activitylog/internal/mcp"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "activityctl",
		Short:   "Inspect and manage the extension activity log",
		Version: mcp.Version,
		Long: `activityctl queries, deletes, and streams extension activity recorded by an
activity log server, and manages the API keys that grant access to it.`,
		SilenceUsage: true,
	}
	cli.AddConnectionFlags(rootCmd)

	rootCmd.AddCommand(cli.ActivityCmds()...)
	rootCmd.AddCommand(cli.KeysCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
