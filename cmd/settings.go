package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"contentfactory/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change application settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Change a setting",
	Example: "  contentfactory settings set video_provider sora",
	Args:    cobra.ExactArgs(2),
	RunE:    runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	if args[0] == settings.KeyVideoProvider {
		fmt.Println(built.Settings.Provider(ctx))
		return nil
	}
	fmt.Println(built.Settings.Get(ctx, args[0], ""))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	if err := built.Settings.Set(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	return nil
}
