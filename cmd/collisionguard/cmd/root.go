package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trackguard/extension/internal/config"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	ExtensionName = "collision_guard"
)

var (
	configDir string
	logLevel  string
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "collisionguard",
	Short: "Workcart collision guard",
	Long: `collisionguard watches track-bound workcarts for unsafe proximity after
contact, slows runaway carts, and destroys a cart that overlaps another,
leaving an audit trail of every intervention.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(incidentsCmd)
	rootCmd.AddCommand(controlledCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// configErr is reported once logging is up; a missing file just means defaults.
var configErr error

func initConfig(cmd *cobra.Command, _ []string) error {
	color.NoColor = color.NoColor || noColor

	err := config.Load(configDir)
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		configErr = fmt.Errorf("no %s in %s, using defaults", config.FileName, configDir)
	default:
		return err
	}

	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	return nil
}
