package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"deskhub.org/internal/config"
)

const envPrefix = "DESKHUB"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "deskhub",
	Short: "Helpdesk agent: session, access control and offline-tolerant ticket sync",
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.deskhub.yml)")

	rootCmd.PersistentFlags().StringVar(&config.BaseURL, "base-url",
		"", "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&config.Locale, "locale",
		"en", "Language header sent on login")
	rootCmd.PersistentFlags().StringVar(&config.StoreBackend, "store-backend",
		"file", "State store backend: file or postgres")
	rootCmd.PersistentFlags().StringVar(&config.StorePath, "store-path",
		defaultStorePath(), "State file path for the file backend")
	rootCmd.PersistentFlags().StringVar(&config.StoreDSN, "store-dsn",
		"", "Connection string for the postgres backend")
	rootCmd.PersistentFlags().StringVar(&config.CacheMaxAge, "cache-max-age",
		"2m", "Ticket snapshot staleness window")
	rootCmd.PersistentFlags().StringVar(&config.SweepInterval, "sweep-interval",
		"30s", "Token expiry sweep interval")
	rootCmd.PersistentFlags().IntVar(&config.RetryCeiling, "retry-ceiling",
		3, "Sync queue per-item attempt limit")
	rootCmd.PersistentFlags().BoolVar(&config.Offline, "offline",
		false, "Start in offline mode")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newTicketsCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newWatchCmd())
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deskhub-state.json"
	}
	return home + "/.deskhub/state.json"
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deskhub")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable).
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
