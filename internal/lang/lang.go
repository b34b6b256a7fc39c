package lang

import (
	"fmt"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
)

type MessageID string

const (
	StartCommandMsgID        MessageID = "start_command"
	LoadingMsgID             MessageID = "loading"
	NoResultsMsgID           MessageID = "no_results"
	VideoDownloadFailedMsgID MessageID = "video_download_failed"
	AudioDownloadFailedMsgID MessageID = "audio_download_failed"
	RequestErrorMsgID        MessageID = "request_error"
	VideoUsageMsgID          MessageID = "video_usage"
	AudioUsageMsgID          MessageID = "audio_usage"
	LinkUsageMsgID           MessageID = "link_usage"
	LinkPromptMsgID          MessageID = "link_prompt"
	LinkPromptTitleMsgID     MessageID = "link_prompt_title"
	DownloadAudioButtonMsgID MessageID = "download_audio_button"
	DownloadVideoButtonMsgID MessageID = "download_video_button"
	ButtonExpiredMsgID       MessageID = "button_expired"

	InstagramDownloadingMsgID MessageID = "instagram_downloading"
	InstagramUploadingMsgID   MessageID = "instagram_uploading"
	InstagramFailedMsgID      MessageID = "instagram_failed"
	InstagramErrorMsgID       MessageID = "instagram_error"
	InstagramSendFailedMsgID  MessageID = "instagram_send_failed"
	InstagramCaptionMsgID     MessageID = "instagram_caption"
)

var messages = map[MessageID]string{
	StartCommandMsgID: "Welcome to the YouTube Bot!\n\n" +
		"Use /video <name> to get a video.\n" +
		"Use /audio <name> to get an audio.\n" +
		"Use /link <YouTube URL> to download directly as audio or video.",
	LoadingMsgID:             "Loading...",
	NoResultsMsgID:           "No results found.",
	VideoDownloadFailedMsgID: "Failed to download video. Please try again.",
	AudioDownloadFailedMsgID: "Failed to download audio. Please try again.",
	RequestErrorMsgID:        "An error occurred while processing your request.",
	VideoUsageMsgID:          "Usage: /video <video name>",
	AudioUsageMsgID:          "Usage: /audio <song name>",
	LinkUsageMsgID:           "Usage: /link <YouTube URL>",
	LinkPromptMsgID:          "You provided a link. Please choose an option below:",
	LinkPromptTitleMsgID:     "You provided a link to \"%s\". Please choose an option below:",
	DownloadAudioButtonMsgID: "Download Audio",
	DownloadVideoButtonMsgID: "Download Video",
	ButtonExpiredMsgID:       "This button has expired. Send /link again.",

	InstagramDownloadingMsgID: "🔄 Downloading Media...",
	InstagramUploadingMsgID:   "📤 Uploading Media...",
	InstagramFailedMsgID:      "❌ Failed to process the Instagram media.",
	InstagramErrorMsgID:       "❌ Error: %s",
	InstagramSendFailedMsgID:  "❌ Could not send media: %s",
	InstagramCaptionMsgID:     "📸 Instagram Media",
}

func GetMessage(id MessageID, args ...any) string {
	if msg, ok := messages[id]; ok {
		if len(args) == 0 {
			return msg
		}
		return fmt.Sprintf(msg, args...)
	}
	logutils.Log.Warnf("Message not found for ID: %s", id)
	return "Message not found"
}
