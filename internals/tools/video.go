package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jadenj13/clipper/internals/asr"
	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/ffmpeg"
	"github.com/jadenj13/clipper/internals/ffprobe"
	"github.com/jadenj13/clipper/internals/llm"
	"github.com/jadenj13/clipper/internals/ytdlp"
)

type Downloader interface {
	Search(ctx context.Context, query string, opts ytdlp.SearchOptions) ([]ytdlp.Video, error)
	ChannelVideos(ctx context.Context, channelURL string, limit int) ([]ytdlp.Video, error)
	Download(ctx context.Context, url, videoID string) (ytdlp.Download, error)
}

type Encoder interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	Render(ctx context.Context, req ffmpeg.RenderRequest) (string, error)
	Thumbnail(ctx context.Context, videoPath, timestamp string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts asr.Options) (asr.Transcript, error)
}

type Prober interface {
	CheckPlayable(ctx context.Context, path string) ffprobe.Playability
}

// VideoDeps are the external collaborators behind the video tools.
type VideoDeps struct {
	Downloader  Downloader
	Encoder     Encoder
	Transcriber Transcriber
	Prober      Prober
}

var toolSearchVideos = llm.Tool{
	Name:        "search_videos",
	Description: "Search for long-form videos matching a query. Shorts, very short videos and low-view videos are filtered out. Returns a list of candidates with id, title, duration, view_count, upload_date, channel and url.",
	Properties: map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Search keywords. E.g. 'Shenzhen 4K walking tour'",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of results.",
			"default":     ytdlp.DefaultLimit,
		},
		"min_duration": map[string]any{
			"type":        "integer",
			"description": "Minimum duration in seconds.",
			"default":     ytdlp.DefaultMinDuration,
		},
		"min_views": map[string]any{
			"type":        "integer",
			"description": "Minimum view count.",
			"default":     ytdlp.DefaultMinViews,
		},
	},
	Required: []string{"query"},
}

var toolDownloadVideo = llm.Tool{
	Name:        "download_video",
	Description: "Download a video (mp4) together with its metadata and comments into the workspace. Returns video_path, info_path and success.",
	Properties: map[string]any{
		"url": map[string]any{
			"type":        "string",
			"description": "Video page URL.",
		},
		"video_id": map[string]any{
			"type":        "string",
			"description": "Optional id used as the workspace sub-directory name. Defaults to the site's video id.",
		},
	},
	Required: []string{"url"},
}

var toolChannelVideos = llm.Tool{
	Name:        "get_channel_videos",
	Description: "List the most recent videos of a channel.",
	Properties: map[string]any{
		"channel_url": map[string]any{
			"type":        "string",
			"description": "Channel URL. E.g. 'https://www.youtube.com/@somechannel/videos'",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of videos.",
			"default":     ytdlp.DefaultLimit,
		},
	},
	Required: []string{"channel_url"},
}

var toolExtractAudio = llm.Tool{
	Name:        "extract_audio_from_video",
	Description: "Extract the audio track of a video as 16 kHz mono WAV, suitable for speech recognition. Returns audio_path.",
	Properties: map[string]any{
		"video_path": map[string]any{
			"type":        "string",
			"description": "Path of the local video file.",
		},
	},
	Required: []string{"video_path"},
}

var toolTranscribe = llm.Tool{
	Name:        "transcribe_audio_to_srt",
	Description: "Transcribe speech in an audio file and write an SRT subtitle file next to it. Returns srt_path, the segment count and the detected language.",
	Properties: map[string]any{
		"audio_path": map[string]any{
			"type":        "string",
			"description": "Path of the audio file, usually produced by extract_audio_from_video.",
		},
		"model_size": map[string]any{
			"type":        "string",
			"description": "Speech model size. E.g. 'small', 'medium', 'large-v3'. Defaults to the configured model.",
		},
		"language": map[string]any{
			"type":        "string",
			"description": "Spoken language code such as 'zh' or 'en', or 'auto' to detect it.",
			"default":     asr.AutoLanguage,
		},
	},
	Required: []string{"audio_path"},
}

var toolRenderVideo = llm.Tool{
	Name:        "render_standard_video",
	Description: "Burn subtitles into a video and optionally mix in looped background music at low volume. Without background music the original audio is copied untouched. Returns output_path.",
	Properties: map[string]any{
		"video_path": map[string]any{
			"type":        "string",
			"description": "Path of the source video.",
		},
		"srt_path": map[string]any{
			"type":        "string",
			"description": "Path of the SRT subtitle file.",
		},
		"bgm_path": map[string]any{
			"type":        "string",
			"description": "Optional path of a background music file.",
		},
	},
	Required: []string{"video_path", "srt_path"},
}

var toolThumbnail = llm.Tool{
	Name:        "extract_thumbnail",
	Description: "Save a single frame of a video as a JPEG thumbnail. Returns thumbnail_path.",
	Properties: map[string]any{
		"video_path": map[string]any{
			"type":        "string",
			"description": "Path of the video.",
		},
		"timestamp": map[string]any{
			"type":        "string",
			"description": "Position of the frame as HH:MM:SS.",
			"default":     ffmpeg.DefaultThumbAt,
		},
	},
	Required: []string{"video_path"},
}

var toolCheckPlayable = llm.Tool{
	Name:        "check_video_playable",
	Description: "Check that a video file is intact: it must have a video stream and a positive duration. Returns playable, duration, has_video and has_audio.",
	Properties: map[string]any{
		"video_path": map[string]any{
			"type":        "string",
			"description": "Path of the video to check.",
		},
	},
	Required: []string{"video_path"},
}

type searchInput struct {
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
	MinDuration int    `json:"min_duration"`
	MinViews    int64  `json:"min_views"`
}

type downloadInput struct {
	URL     string `json:"url"`
	VideoID string `json:"video_id"`
}

type channelInput struct {
	ChannelURL string `json:"channel_url"`
	Limit      int    `json:"limit"`
}

type videoPathInput struct {
	VideoPath string `json:"video_path"`
}

type transcribeInput struct {
	AudioPath string `json:"audio_path"`
	ModelSize string `json:"model_size"`
	Language  string `json:"language"`
}

type renderInput struct {
	VideoPath string `json:"video_path"`
	SRTPath   string `json:"srt_path"`
	BGMPath   string `json:"bgm_path"`
}

type thumbnailInput struct {
	VideoPath string `json:"video_path"`
	Timestamp string `json:"timestamp"`
}

// VideoDefinitions returns the video tools in the order they are advertised.
func VideoDefinitions(deps VideoDeps) []Definition {
	return []Definition{
		{Spec: toolSearchVideos, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in := searchInput{Limit: ytdlp.DefaultLimit, MinDuration: ytdlp.DefaultMinDuration, MinViews: ytdlp.DefaultMinViews}
			if err := decode(raw, &in, toolSearchVideos.Required); err != nil {
				return nil, err
			}
			videos, err := deps.Downloader.Search(ctx, in.Query, ytdlp.SearchOptions{
				Limit:       in.Limit,
				MinDuration: in.MinDuration,
				MinViews:    in.MinViews,
			})
			if err != nil {
				return nil, err
			}
			return nonNil(videos), nil
		}},
		{Spec: toolDownloadVideo, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in downloadInput
			if err := decode(raw, &in, toolDownloadVideo.Required); err != nil {
				return nil, err
			}
			result, err := deps.Downloader.Download(ctx, in.URL, in.VideoID)
			if err != nil {
				return ytdlp.Download{Success: false, Error: err.Error()}, nil
			}
			return result, nil
		}},
		{Spec: toolChannelVideos, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in := channelInput{Limit: ytdlp.DefaultLimit}
			if err := decode(raw, &in, toolChannelVideos.Required); err != nil {
				return nil, err
			}
			videos, err := deps.Downloader.ChannelVideos(ctx, in.ChannelURL, in.Limit)
			if err != nil {
				return nil, err
			}
			return nonNil(videos), nil
		}},
		{Spec: toolExtractAudio, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in videoPathInput
			if err := decode(raw, &in, toolExtractAudio.Required); err != nil {
				return nil, err
			}
			path, err := deps.Encoder.ExtractAudio(ctx, in.VideoPath)
			if err != nil {
				return nil, err
			}
			return map[string]string{"audio_path": path}, nil
		}},
		{Spec: toolTranscribe, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in := transcribeInput{Language: asr.AutoLanguage}
			if err := decode(raw, &in, toolTranscribe.Required); err != nil {
				return nil, err
			}
			return deps.Transcriber.Transcribe(ctx, in.AudioPath, asr.Options{Model: in.ModelSize, Language: in.Language})
		}},
		{Spec: toolRenderVideo, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in renderInput
			if err := decode(raw, &in, toolRenderVideo.Required); err != nil {
				return nil, err
			}
			path, err := deps.Encoder.Render(ctx, ffmpeg.RenderRequest{
				VideoPath: in.VideoPath,
				SRTPath:   in.SRTPath,
				BGMPath:   in.BGMPath,
			})
			if err != nil {
				return nil, err
			}
			return map[string]string{"output_path": path}, nil
		}},
		{Spec: toolThumbnail, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in := thumbnailInput{Timestamp: ffmpeg.DefaultThumbAt}
			if err := decode(raw, &in, toolThumbnail.Required); err != nil {
				return nil, err
			}
			path, err := deps.Encoder.Thumbnail(ctx, in.VideoPath, in.Timestamp)
			if err != nil {
				return nil, err
			}
			return map[string]string{"thumbnail_path": path}, nil
		}},
		{Spec: toolCheckPlayable, Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var in videoPathInput
			if err := decode(raw, &in, toolCheckPlayable.Required); err != nil {
				return nil, err
			}
			return deps.Prober.CheckPlayable(ctx, in.VideoPath), nil
		}},
	}
}

// decode unmarshals raw over dst, whose pre-set fields act as defaults, after
// checking that every required field is present and not empty.
func decode(raw json.RawMessage, dst any, required []string) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fault.Wrap(fault.ErrMalformed, "decode input", "", err)
	}
	for _, name := range required {
		v, ok := fields[name]
		if !ok || isEmptyJSON(v) {
			return fault.Wrap(fault.ErrMalformed, "decode input", fmt.Sprintf("missing required field %q", name), nil)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fault.Wrap(fault.ErrMalformed, "decode input", "", err)
	}
	return nil
}

func isEmptyJSON(v json.RawMessage) bool {
	switch string(bytes.TrimSpace(v)) {
	case "", "null", `""`:
		return true
	}
	return false
}

func nonNil(videos []ytdlp.Video) []ytdlp.Video {
	if videos == nil {
		return []ytdlp.Video{}
	}
	return videos
}
