package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "xwm",
		Short: "Crosswalk storage migration - move embedded-engine data into the system WebView",
		Long: `xwm moves the data an app stored through the embedded Crosswalk engine
(local storage, cookies, HTTP cache, IndexedDB, WebSQL) into the directories
of the installed system WebView, converting local storage to the format the
WebView version expects.

Migration is attempted once. On success the legacy data is deleted and the
host app is restarted; on failure the legacy data is left untouched.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/xwm.yaml)")
	rootCmd.PersistentFlags().String("db", "xwm-state.db", "run history database file")
	rootCmd.PersistentFlags().String("files-dir", "", "app internal files directory (its parent is the storage root)")
	rootCmd.PersistentFlags().String("external-files-dir", "", "app external files directory, searched second")
	rootCmd.PersistentFlags().String("origin", layout.DefaultOrigin.String(), "origin that owns the migrated local storage")
	rootCmd.PersistentFlags().String("webview-package", layout.DefaultPackage, "package id of the system WebView")
	rootCmd.PersistentFlags().String("webview-version", "", "WebView version to use when the package manager cannot be asked")
	rootCmd.PersistentFlags().String("version-command", "dumpsys package", "command printing the package dump, the package id is appended")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, name := range []string{"db", "files-dir", "external-files-dir", "origin", "webview-package", "webview-version", "version-command", "verbose", "quiet"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("xwm")
		viper.SetConfigType("yaml")
	}

	// XWM_FILES_DIR and friends
	viper.SetEnvPrefix("XWM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
