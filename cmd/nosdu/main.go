package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nithronos/nosdu/internal/config"
	"nithronos/nosdu/internal/logging"
)

var (
	// Version info (set by build)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// Global flags
	cfgFile    string
	verbose    bool
	outputJSON bool
	outputYAML bool

	cfg    config.Config
	logger *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nosdu",
	Short: "Disk usage analyzer for NithronOS hosts",
	Long: `nosdu lists the drives of this host with their mounted partitions and
network shares, and measures how much space every directory below a path
takes.

Run "nosdu serve" to expose the same data over HTTP.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/nos/nosdu.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-object diagnostics")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&outputYAML, "yaml", false, "output in YAML format")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add commands
	rootCmd.AddCommand(
		newDrivesCmd(),
		newCrawlCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadViper(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.New(cfg, os.Stderr)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug().Str("path", used).Msg("Using config file")
	}
	if outputJSON && outputYAML {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
