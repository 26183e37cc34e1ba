package main

import (
	"context"
	"fmt"

	"chatflow/internal/app"
	"chatflow/internal/models"

	"github.com/spf13/cobra"
)

var (
	mediaName string
	mediaType string
	mediaURL  string
	mediaMime string
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage the media library used by send_media actions",
}

var mediaAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a hosted media file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		item, err := newMediaItem(userID, mediaName, mediaType, mediaURL, mediaMime)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Media.Create(ctx, item); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", item.ID)
			return nil
		})
	},
}

func newMediaItem(userID, name, kind, url, mime string) (*models.MediaLibrary, error) {
	t := models.MediaType(kind)
	if !t.Valid() || t == models.MessageText {
		return nil, fmt.Errorf("--type must be one of image, video, audio, document")
	}
	if name == "" || url == "" {
		return nil, fmt.Errorf("--name and --url are required")
	}
	return &models.MediaLibrary{UserID: userID, Name: name, Type: t, FileURL: url, MimeType: mime}, nil
}

func init() {
	mediaAddCmd.Flags().StringVar(&mediaName, "name", "", "display name")
	mediaAddCmd.Flags().StringVar(&mediaType, "type", "image", "image, video, audio or document")
	mediaAddCmd.Flags().StringVar(&mediaURL, "url", "", "public file url")
	mediaAddCmd.Flags().StringVar(&mediaMime, "mime", "", "mime type")
	mediaCmd.AddCommand(mediaAddCmd)
	rootCmd.AddCommand(mediaCmd)
}
