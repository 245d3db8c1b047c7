package commands

import (
	"context"
	"fmt"
	"os"

	"seatgrab/internal/components/serviceutil"
	"seatgrab/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpHttp   bool
)

var rootCmd = &cobra.Command{
	Use:   "seatgrab",
	Short: "seatgrab reserves or grabs library seats at a precise time.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose || dumpHttp)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "seatgrab.json5", "The config file, a <name>.local.json5 next to it overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
	rootCmd.PersistentFlags().BoolVar(&dumpHttp, "dump-http", false, "Log every http exchange with credentials redacted, implies --verbose.")
}

func mustConfig() Config {
	config, err := readConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return config
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
