package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "contentfactory",
	Short: "Generate avatar and text-to-video content",
	Long: `Contentfactory turns topics into short videos rendered by HeyGen or Sora,
tracks their status and optionally publishes finished videos to YouTube.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "User the command acts for")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger()
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
