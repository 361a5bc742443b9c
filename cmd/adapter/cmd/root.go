package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/adapter-skeleton/internal/config"
)

var (
	cfgFile string
	// configErr holds a config file that exists but could not be parsed.
	// run reports it through the fault interceptor.
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "adapter",
	Short: "Batch adapter runner",
	Long: `adapter runs a configured chain of tasks once, delivers diagnostic
messages to the configured sinks and reports liveness to a heartbeat service.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./adapter.yaml or $HOME/.adapter/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "emit task profiling messages")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	file := cfgFile
	if file == "" {
		file = defaultConfigFile()
	}
	if file == "" {
		// Environment only
		return
	}

	v.SetConfigFile(file)
	if filepath.Ext(file) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		configErr = fmt.Errorf("failed to read config %s: %w", file, err)
	}
}

func defaultConfigFile() string {
	candidates := []string{"adapter.yaml", "adapter.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".adapter", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
