package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"contentfactory/internal/model"
)

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Manage avatars",
}

var avatarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List avatars",
	RunE:  runAvatarList,
}

var avatarSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import avatars and talking photos from the HeyGen account",
	RunE:  runAvatarSync,
}

var avatarDefaultCmd = &cobra.Command{
	Use:   "default <id>",
	Short: "Make an avatar the default",
	Args:  cobra.ExactArgs(1),
	RunE:  runAvatarDefault,
}

func init() {
	avatarCmd.AddCommand(avatarListCmd, avatarSyncCmd, avatarDefaultCmd)
	rootCmd.AddCommand(avatarCmd)
}

func runAvatarList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	avatars, err := built.Avatars.List(ctx, userID)
	if err != nil {
		return err
	}
	printAvatars(avatars)
	return nil
}

func runAvatarSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	result, err := built.Avatars.Sync(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d, updated %d\n", result.Imported, result.Updated)
	return nil
}

func runAvatarDefault(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	if err := built.Avatars.SetDefault(ctx, userID, args[0]); err != nil {
		return err
	}
	fmt.Println("Default avatar: " + args[0])
	return nil
}

func printAvatars(avatars []model.Avatar) {
	rows := make([][]string, 0, len(avatars))
	for _, a := range avatars {
		rows = append(rows, []string{
			a.ID,
			a.Name,
			a.HeyGenAvatarID,
			string(a.Kind),
			string(a.Source),
			string(a.Status),
			strconv.FormatBool(a.IsDefault),
		})
	}
	fmt.Println(renderTable([]string{"ID", "Name", "HeyGen ID", "Kind", "Source", "Status", "Default"}, rows))
}
