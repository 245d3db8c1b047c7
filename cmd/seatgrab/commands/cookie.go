package commands

import (
	"fmt"
	"os"
	"time"

	"seatgrab/internal/components/chrono"
	"seatgrab/internal/components/serviceutil"
	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/credential"

	"github.com/spf13/cobra"
)

func init() {
	cookieCmd.AddCommand(cookieWaitCmd)
	cookieCmd.AddCommand(cookieShowCmd)
	rootCmd.AddCommand(cookieCmd)
}

var cookieCmd = &cobra.Command{
	Use:   "cookie",
	Short: "Inspects the cookie file the capture helper writes.",
}

func preview(cookie string) string {
	if len(cookie) <= 24 {
		return cookie
	}
	return cookie[:24] + "..."
}

var cookieWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Waits until the capture helper writes a fresh cookie.",
	Run: func(cmd *cobra.Command, args []string) {
		config := mustConfig()
		fmt.Fprintf(os.Stdout, "waiting for a fresh cookie in %s...\n", config.Credential.CookieFile)

		cookie, err := credential.Waiter{
			Path:     config.Credential.CookieFile,
			Timeout:  time.Duration(config.Credential.WaitTimeoutS) * time.Second,
			Interval: ms(config.Credential.PollIntervalMs),
			Clock:    chrono.NewStandardTime(),
			Tel:      telemetry.NewSlogAPI(nil),
		}.WaitForUpdate(cmd.Context(), func(remaining time.Duration) {
			fmt.Fprintf(os.Stdout, "%.0f seconds left...\n", remaining.Seconds())
		})
		if err != nil {
			serviceutil.Fatal("failed to obtain a cookie", err)
		}
		fmt.Fprintf(os.Stdout, "got a cookie: %s\n", preview(cookie))
	},
}

var cookieShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Checks the current cookie file.",
	Run: func(cmd *cobra.Command, args []string) {
		config := mustConfig()
		cookie, err := credential.File{Path: config.Credential.CookieFile}.Credential(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read the cookie", err)
		}
		fmt.Fprintf(os.Stdout, "%s\n", preview(cookie))
	},
}
