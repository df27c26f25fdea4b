package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/pathutil"
)

// FFprobe implements Prober and SubtitleExtractor by shelling out to the
// ffprobe and ffmpeg binaries.
type FFprobe struct {
	probePath  string
	ffmpegPath string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewFFprobe locates the ffprobe/ffmpeg binaries. Explicit paths win; empty
// paths fall back to PATH lookup and common install locations.
func NewFFprobe(probePath, ffmpegPath string, logger zerolog.Logger) *FFprobe {
	f := &FFprobe{
		probePath:  findExecutable("ffprobe", probePath),
		ffmpegPath: findExecutable("ffmpeg", ffmpegPath),
		timeout:    30 * time.Second,
		logger:     logger.With().Str("component", "ffprobe").Logger(),
	}
	if f.probePath == "" {
		f.logger.Warn().Msg("ffprobe not found, media probing disabled")
	}
	return f
}

// Available reports whether the ffprobe binary was found.
func (f *FFprobe) Available() bool {
	return f.probePath != ""
}

func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{"/usr/local/bin/" + name, "/opt/homebrew/bin/" + name}
	case "linux":
		commonPaths = []string{"/usr/bin/" + name, "/usr/local/bin/" + name}
	case "windows":
		commonPaths = []string{`C:\ffmpeg\bin\` + name + ".exe"}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

type ffprobeOutput struct {
	Format   ffprobeFormat    `json:"format"`
	Streams  []ffprobeStream  `json:"streams"`
	Chapters []ffprobeChapter `json:"chapters"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecType      string            `json:"codec_type"`
	CodecName      string            `json:"codec_name"`
	Profile        string            `json:"profile"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	PixFmt         string            `json:"pix_fmt"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorTransfer  string            `json:"color_transfer"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	Tags           map[string]string `json:"tags"`
	SideDataList   []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
}

type ffprobeChapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Probe runs ffprobe against path and normalizes the output.
func (f *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if f.probePath == "" {
		return nil, fmt.Errorf("ffprobe not available")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{Container: out.Format.FormatName}
	if out.Format.Size != "" {
		result.FileSize, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	}
	if out.Format.BitRate != "" {
		result.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		result.Duration = time.Duration(d * float64(time.Second))
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			hasDV, hasHDR10Plus := false, false
			for _, sd := range s.SideDataList {
				t := strings.ToLower(sd.SideDataType)
				if strings.Contains(t, "dolby vision") {
					hasDV = true
				}
				if strings.Contains(t, "2094") { // SMPTE ST 2094 dynamic metadata
					hasHDR10Plus = true
				}
			}
			depth := bitDepthFromPixFmt(s.PixFmt)
			result.VideoStreams = append(result.VideoStreams, VideoStream{
				Codec:    normalizeVideoCodec(s.CodecName),
				Width:    s.Width,
				Height:   s.Height,
				BitDepth: depth,
				HDR:      detectHDR(s.ColorTransfer, s.ColorPrimaries, depth, hasDV, hasHDR10Plus),
			})
		case "audio":
			result.AudioStreams = append(result.AudioStreams, AudioStream{
				Codec:    normalizeAudioCodec(s.CodecName, s.Profile),
				Channels: formatChannels(s.Channels, s.ChannelLayout),
				Language: streamLanguage(s.Tags),
			})
		case "subtitle":
			result.SubtitleStreams = append(result.SubtitleStreams, SubtitleStream{
				Index:    s.Index,
				Codec:    s.CodecName,
				Language: streamLanguage(s.Tags),
			})
		}
	}

	for i, c := range out.Chapters {
		ch := Chapter{Index: i, Title: c.Tags["title"]}
		if t, err := strconv.ParseFloat(c.StartTime, 64); err == nil {
			ch.Start = time.Duration(t * float64(time.Second))
		}
		if t, err := strconv.ParseFloat(c.EndTime, 64); err == nil {
			ch.End = time.Duration(t * float64(time.Second))
		}
		result.Chapters = append(result.Chapters, ch)
	}

	return result, nil
}

func streamLanguage(tags map[string]string) string {
	lang := tags["language"]
	if lang == "und" {
		return ""
	}
	return strings.ToLower(lang)
}

func bitDepthFromPixFmt(pixFmt string) int {
	lower := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(lower, "12le"), strings.Contains(lower, "12be"):
		return 12
	case strings.Contains(lower, "10le"), strings.Contains(lower, "10be"),
		strings.Contains(lower, "p010"):
		return 10
	case lower == "":
		return 0
	default:
		return 8
	}
}

// ExtractSubtitles writes every text-based embedded subtitle track of
// videoPath into outputDir as WebVTT, named after the video stem and track
// language. Image-based tracks (PGS, VobSub) are skipped.
func (f *FFprobe) ExtractSubtitles(ctx context.Context, videoPath, outputDir string) ([]string, error) {
	if f.ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg not available")
	}

	probe, err := f.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create subtitle dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	var written []string

	for i, sub := range probe.SubtitleStreams {
		if isImageSubtitle(sub.Codec) {
			continue
		}

		name := stem
		if sub.Language != "" {
			name += "." + sub.Language
		}
		if countLanguage(probe.SubtitleStreams, sub.Language) > 1 {
			name += fmt.Sprintf(".%d", i)
		}
		outPath := filepath.Join(outputDir, pathutil.SanitizeFilename(name)+".vtt")

		extractCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		cmd := exec.CommandContext(extractCtx, f.ffmpegPath,
			"-y",
			"-i", videoPath,
			"-map", fmt.Sprintf("0:s:%d", i),
			"-f", "webvtt",
			outPath,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		err := cmd.Run()
		cancel()
		if err != nil {
			f.logger.Warn().Err(err).Str("video", videoPath).Int("track", i).
				Msg("subtitle track extraction failed")
			continue
		}
		written = append(written, outPath)
	}

	return written, nil
}

func isImageSubtitle(codec string) bool {
	switch strings.ToLower(codec) {
	case "hdmv_pgs_subtitle", "dvd_subtitle", "dvb_subtitle", "xsub":
		return true
	}
	return false
}

func countLanguage(subs []SubtitleStream, lang string) int {
	n := 0
	for _, s := range subs {
		if s.Language == lang {
			n++
		}
	}
	return n
}
