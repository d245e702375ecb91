package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	cachePath  string
	apiURL     string
}

var rootCmd = &cobra.Command{
	Use:   "cta-field",
	Short: "Field toolkit for CTA vehicle inspections",
	Long: "cta-field runs the technician inspection flow (photo, plate, form,\n" +
		"checklist, report, submission) and the supervisor review flow\n" +
		"against the CTA backend, keeping a local record cache.",
	SilenceUsage:       true,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "path to a yaml config file")
	f.StringVar(&rootFlags.cachePath, "cache", "", "local cache database (overrides cache.path)")
	f.StringVar(&rootFlags.apiURL, "api", "", "backend base URL including /api (overrides api.base_url)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
