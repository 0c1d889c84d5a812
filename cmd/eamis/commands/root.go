package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpDir    string
)

var rootCmd = &cobra.Command{
	Use:          "eamis",
	Short:        "eamis is a CLI for the Nankai EAMIS course election portal.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file, <name>.local.<ext> is merged on top of it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump", "", "Write a dump of every http exchange to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
