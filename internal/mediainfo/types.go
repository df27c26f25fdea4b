// Package mediainfo provides media probing capabilities backed by ffprobe,
// plus the abstract capability interfaces consumed by the scanner and
// importer.
package mediainfo

import (
	"strings"
	"time"
)

// ProbeResult is the normalized output of probing one media file.
type ProbeResult struct {
	VideoStreams    []VideoStream    `json:"videoStreams"`
	AudioStreams    []AudioStream    `json:"audioStreams"`
	SubtitleStreams []SubtitleStream `json:"subtitleStreams"`
	Chapters        []Chapter        `json:"chapters"`

	Container string        `json:"container"`
	Bitrate   int64         `json:"bitrate"`
	Duration  time.Duration `json:"duration"`
	FileSize  int64         `json:"fileSize"`
}

// VideoStream describes one video track. Codec and HDR use the same
// vocabulary as release parsing so probe results can backfill parsed fields
// directly.
type VideoStream struct {
	Codec    string `json:"codec"` // "hevc", "avc", "av1"
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BitDepth int    `json:"bitDepth"`
	HDR      string `json:"hdr,omitempty"` // "dv", "hdr10plus", "hdr10", "hlg"
}

// AudioStream describes one audio track.
type AudioStream struct {
	Codec    string `json:"codec"` // "atmos", "truehd", "dtshd", ...
	Channels string `json:"channels"`
	Language string `json:"language,omitempty"`
}

// SubtitleStream describes one embedded subtitle track.
type SubtitleStream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
}

// Chapter is one chapter marker from the container.
type Chapter struct {
	Index int           `json:"index"`
	Title string        `json:"title,omitempty"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// PrimaryVideo returns the first video stream, or a zero stream when the
// file carries none.
func (p *ProbeResult) PrimaryVideo() VideoStream {
	if len(p.VideoStreams) == 0 {
		return VideoStream{}
	}
	return p.VideoStreams[0]
}

// PrimaryAudio returns the first audio stream, or a zero stream.
func (p *ProbeResult) PrimaryAudio() AudioStream {
	if len(p.AudioStreams) == 0 {
		return AudioStream{}
	}
	return p.AudioStreams[0]
}

// ResolutionLabel buckets a frame height into the standard resolution labels.
// Widths are ignored: anamorphic and cropped content keeps its height class.
func ResolutionLabel(height int) string {
	switch {
	case height >= 1800:
		return "2160p"
	case height >= 900:
		return "1080p"
	case height >= 650:
		return "720p"
	case height > 0:
		return "480p"
	default:
		return ""
	}
}

const gib = int64(1) << 30

// InferSource guesses the release source for a file that carries no parseable
// source token, using resolution and file size. Remux-sized files dominate
// each bracket, disc encodes next, everything else is assumed WEB-DL.
func InferSource(resolution string, size int64) string {
	switch resolution {
	case "2160p":
		switch {
		case size > 40*gib:
			return "remux"
		case size > 20*gib:
			return "bluray"
		default:
			return "webdl"
		}
	case "1080p":
		switch {
		case size > 20*gib:
			return "remux"
		case size > 8*gib:
			return "bluray"
		default:
			return "webdl"
		}
	case "720p":
		if size > 4*gib {
			return "bluray"
		}
		return "webdl"
	case "":
		return ""
	default:
		return "webdl"
	}
}

// normalizeVideoCodec maps ffprobe codec names onto release-parse vocabulary.
func normalizeVideoCodec(name string) string {
	switch strings.ToLower(name) {
	case "hevc", "h265":
		return "hevc"
	case "h264", "avc":
		return "avc"
	case "av1":
		return "av1"
	default:
		return strings.ToLower(name)
	}
}

// normalizeAudioCodec maps an ffprobe codec name and profile onto
// release-parse vocabulary.
func normalizeAudioCodec(name, profile string) string {
	lower := strings.ToLower(name)
	prof := strings.ToLower(profile)

	switch {
	case strings.Contains(prof, "atmos"):
		return "atmos"
	case lower == "truehd":
		return "truehd"
	case lower == "dts" && strings.Contains(prof, "dts:x"):
		return "dtsx"
	case lower == "dts" && strings.Contains(prof, "ma"):
		return "dtshd"
	case lower == "dts":
		return "dts"
	case lower == "eac3":
		return "ddplus"
	case lower == "ac3":
		return "dd"
	case lower == "flac":
		return "flac"
	case lower == "aac":
		return "aac"
	case lower == "opus":
		return "opus"
	case lower == "mp3":
		return "mp3"
	case strings.HasPrefix(lower, "pcm"):
		return "pcm"
	default:
		return lower
	}
}

// formatChannels converts an ffprobe channel count and layout into the
// conventional "7.1"/"5.1"/"2.0" labels.
func formatChannels(channels int, layout string) string {
	lower := strings.ToLower(layout)
	switch {
	case strings.Contains(lower, "7.1"):
		return "7.1"
	case strings.Contains(lower, "5.1"):
		return "5.1"
	case strings.Contains(lower, "stereo"), strings.Contains(lower, "2.0"):
		return "2.0"
	case strings.Contains(lower, "mono"):
		return "1.0"
	}

	switch {
	case channels >= 8:
		return "7.1"
	case channels >= 6:
		return "5.1"
	case channels >= 2:
		return "2.0"
	case channels == 1:
		return "1.0"
	default:
		return ""
	}
}
