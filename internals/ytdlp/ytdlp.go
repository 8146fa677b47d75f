package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/proc"
)

const (
	DefaultBinary      = "yt-dlp"
	DefaultLimit       = 5
	DefaultMinDuration = 120
	DefaultMinViews    = 10000

	listTimeout     = time.Minute
	downloadTimeout = 10 * time.Minute

	downloadFormat = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Video struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Duration   int    `json:"duration"`
	ViewCount  int64  `json:"view_count"`
	UploadDate string `json:"upload_date"`
	Channel    string `json:"channel"`
	URL        string `json:"url"`
}

type SearchOptions struct {
	Limit       int
	MinDuration int   // seconds; filters out shorts
	MinViews    int64 // popularity floor
}

type Download struct {
	VideoPath string `json:"video_path"`
	InfoPath  string `json:"info_path"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type Client struct {
	binary    string
	workspace string
	runner    proc.Runner
	log       *slog.Logger
}

func New(binary, workspace string, runner proc.Runner, log *slog.Logger) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = proc.Local{}
	}
	return &Client{binary: binary, workspace: workspace, runner: runner, log: log}
}

// Search queries the site search for up to opts.Limit candidates that pass the
// duration and view-count floors.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	args := []string{
		"--dump-json",
		"--flat-playlist",
		"--match-filter", fmt.Sprintf("duration > %d", opts.MinDuration),
		"--match-filter", fmt.Sprintf("view_count > %d", opts.MinViews),
		"--match-filter", "original_url!*=/shorts/",
		fmt.Sprintf("ytsearch%d:%s", opts.Limit, query),
	}
	out, err := c.runner.Run(ctx, proc.Cmd{Name: c.binary, Args: args, Timeout: listTimeout})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	videos := c.parseVideos(out)
	c.log.Info("search finished", "query", query, "results", len(videos))
	return videos, nil
}

// ChannelVideos lists the newest uploads of a channel.
func (c *Client) ChannelVideos(ctx context.Context, channelURL string, limit int) ([]Video, error) {
	channelURL = strings.TrimSpace(channelURL)
	if channelURL == "" {
		return nil, fmt.Errorf("channel videos: empty channel url")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	args := []string{
		"--dump-json",
		"--flat-playlist",
		"--playlist-end", strconv.Itoa(limit),
		channelURL,
	}
	out, err := c.runner.Run(ctx, proc.Cmd{Name: c.binary, Args: args, Timeout: listTimeout})
	if err != nil {
		return nil, fmt.Errorf("channel videos %s: %w", channelURL, err)
	}
	videos := c.parseVideos(out)
	c.log.Info("channel listing finished", "channel", channelURL, "results", len(videos))
	return videos, nil
}

// Download fetches url into <workspace>/<videoID>/video.<ext> along with its
// info JSON. When videoID is empty the site's own id names the directory.
//
// The final file path comes from yt-dlp's after_move:filepath print rather
// than from its human-readable progress lines, which change with locale and
// version.
func (c *Client) Download(ctx context.Context, url, videoID string) (Download, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Download{}, fmt.Errorf("download: empty url")
	}
	dirName := "%(id)s"
	if videoID != "" {
		if !videoIDPattern.MatchString(videoID) {
			return Download{}, fmt.Errorf("download: invalid video_id %q", videoID)
		}
		dirName = videoID
	}
	if err := os.MkdirAll(c.workspace, 0o755); err != nil {
		return Download{}, fmt.Errorf("create workspace: %w", err)
	}

	template := filepath.Join(c.workspace, dirName, "video.%(ext)s")
	args := []string{
		"-f", downloadFormat,
		"--write-info-json",
		"--write-comments",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", template,
		url,
	}
	c.log.Info("download started", "url", url, "video_id", videoID)
	out, err := c.runner.Run(ctx, proc.Cmd{Name: c.binary, Args: args, Timeout: downloadTimeout})
	if err != nil {
		return Download{}, fmt.Errorf("download %s: %w", url, err)
	}

	videoPath := lastLine(out)
	if videoPath == "" && videoID != "" {
		videoPath = findVideo(filepath.Join(c.workspace, videoID))
	}
	if videoPath == "" {
		return Download{}, fmt.Errorf("download %s: yt-dlp did not report an output file", url)
	}

	result := Download{
		VideoPath: videoPath,
		InfoPath:  strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".info.json",
		Success:   true,
	}
	c.log.Info("download finished", "url", url, "path", result.VideoPath)
	return result, nil
}

type rawEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	ViewCount  *float64 `json:"view_count"`
	UploadDate string   `json:"upload_date"`
	Channel    string   `json:"channel"`
	Uploader   string   `json:"uploader"`
	WebpageURL string   `json:"webpage_url"`
}

// parseVideos decodes one JSON object per line. Lines that are not objects,
// do not decode, or carry no id are skipped.
func (c *Client) parseVideos(out []byte) []Video {
	var videos []Video
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			c.log.Debug("skipping non-object yt-dlp line", "line", truncateLine(line))
			continue
		}
		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			c.log.Debug("skipping malformed yt-dlp line", "err", err)
			continue
		}
		if strings.TrimSpace(entry.ID) == "" {
			c.log.Debug("skipping yt-dlp entry without id", "title", entry.Title)
			continue
		}
		videos = append(videos, entry.video())
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn("yt-dlp output truncated", "err", err)
	}
	return videos
}

func (e rawEntry) video() Video {
	v := Video{
		ID:         e.ID,
		Title:      e.Title,
		UploadDate: e.UploadDate,
		Channel:    e.Channel,
		URL:        e.WebpageURL,
	}
	if e.Duration != nil {
		v.Duration = int(math.Round(*e.Duration))
	}
	if e.ViewCount != nil {
		v.ViewCount = int64(*e.ViewCount)
	}
	if v.Channel == "" {
		v.Channel = e.Uploader
	}
	if v.URL == "" {
		v.URL = "https://www.youtube.com/watch?v=" + e.ID
	}
	return v
}

func truncateLine(line []byte) string {
	if len(line) > 80 {
		return string(line[:80]) + "…"
	}
	return string(line)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func findVideo(dir string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, "video.*"))
	for _, m := range matches {
		switch strings.ToLower(filepath.Ext(m)) {
		case ".mp4", ".mkv", ".webm", ".mov":
			return m
		}
	}
	return ""
}
