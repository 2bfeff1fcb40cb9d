package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"contentfactory/internal/app"
	"contentfactory/internal/model"
)

var (
	videoScript      string
	videoStyle       string
	videoDuration    int
	videoAvatar      string
	videoTemplate    string
	videoAspectRatio string
	videoWait        bool

	publishTitle       string
	publishDescription string
	publishPrivacy     string
	publishTags        []string
)

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Create and manage videos",
}

var videoCreateCmd = &cobra.Command{
	Use:   "create <topic>",
	Short: "Request a new video for a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoCreate,
}

var videoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List videos",
	RunE:  runVideoList,
}

var videoStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Refresh a video's status from its provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoStatus,
}

var videoRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Retry a failed video",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoRetry,
}

var videoDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoDelete,
}

var videoPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Upload a completed video to YouTube",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoPublish,
}

func init() {
	videoCreateCmd.Flags().StringVarP(&videoScript, "script", "s", "", "Script to speak (generated when empty)")
	videoCreateCmd.Flags().StringVar(&videoStyle, "style", string(model.StyleCasual), "casual, professional, energetic or educational")
	videoCreateCmd.Flags().IntVarP(&videoDuration, "duration", "d", 0, "Target duration in seconds")
	videoCreateCmd.Flags().StringVarP(&videoAvatar, "avatar", "a", "", "Avatar record or provider id")
	videoCreateCmd.Flags().StringVar(&videoTemplate, "template", "", "HeyGen template id")
	videoCreateCmd.Flags().StringVar(&videoAspectRatio, "aspect-ratio", "", "Aspect ratio, e.g. 9:16")
	videoCreateCmd.Flags().BoolVarP(&videoWait, "wait", "w", true, "Wait for the provider dispatch to finish")

	videoPublishCmd.Flags().StringVar(&publishTitle, "title", "", "Video title (defaults to the topic)")
	videoPublishCmd.Flags().StringVar(&publishDescription, "description", "", "Video description")
	videoPublishCmd.Flags().StringVar(&publishPrivacy, "privacy", "", "private, unlisted or public")
	videoPublishCmd.Flags().StringSliceVar(&publishTags, "tags", nil, "Comma separated tags")

	videoCmd.AddCommand(videoCreateCmd, videoListCmd, videoStatusCmd, videoRetryCmd, videoDeleteCmd, videoPublishCmd)
	rootCmd.AddCommand(videoCmd)
}

func runVideoCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	video, err := built.Service.RequestManualVideo(ctx, app.Request{
		UserID:      userID,
		Topic:       args[0],
		Script:      videoScript,
		Style:       model.Style(videoStyle),
		Duration:    videoDuration,
		AvatarID:    videoAvatar,
		TemplateID:  videoTemplate,
		AspectRatio: videoAspectRatio,
	})
	if err != nil {
		return err
	}

	if videoWait {
		built.Service.Wait()
		if video, err = built.Service.Get(ctx, userID, video.ID); err != nil {
			return err
		}
	}

	printVideos([]model.Video{*video})
	return nil
}

func runVideoList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	videos, err := built.Service.List(ctx, userID)
	if err != nil {
		return err
	}
	printVideos(videos)
	return nil
}

func runVideoStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	result, err := built.Service.RefreshStatus(ctx, userID, args[0])
	if err != nil {
		return err
	}

	printVideos([]model.Video{*result.Video})
	if result.Progress != nil {
		fmt.Println("Progress: " + strconv.Itoa(*result.Progress) + "%")
	}
	return nil
}

func runVideoRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	video, err := built.Service.Retry(ctx, userID, args[0])
	if err != nil {
		return err
	}
	built.Service.Wait()

	if video, err = built.Service.Get(ctx, userID, video.ID); err != nil {
		return err
	}
	printVideos([]model.Video{*video})
	return nil
}

func runVideoDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	if err := built.Service.Delete(ctx, userID, args[0]); err != nil {
		return err
	}
	fmt.Println("Deleted " + args[0])
	return nil
}

func runVideoPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, built, err := loadApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	resp, err := built.Service.Publish(ctx, userID, args[0], app.Publication{
		Title:       publishTitle,
		Description: publishDescription,
		Tags:        publishTags,
		Privacy:     publishPrivacy,
	})
	if err != nil {
		return err
	}
	fmt.Println("Published: " + resp.URL)
	return nil
}

func printVideos(videos []model.Video) {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			v.Topic,
			string(v.Status),
			string(v.Provider),
			v.ProviderID(),
			deref(v.VideoURL),
			deref(v.ErrorMessage),
			v.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	fmt.Println(renderTable([]string{"ID", "Topic", "Status", "Provider", "Provider ID", "URL", "Error", "Created"}, rows))
}
