// Package parser converts release titles into structured quality descriptors.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedRelease contains all extracted info from a release name.
type ParsedRelease struct {
	// Identification
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	RawTitle string `json:"rawTitle"`

	// TV specific
	Season     int `json:"season,omitempty"`
	Episode    int `json:"episode,omitempty"`
	EpisodeEnd int `json:"episodeEnd,omitempty"` // multi-episode files (S01E01-E02)
	Absolute   int `json:"absolute,omitempty"`   // anime flat numbering

	// Video quality
	Resolution string `json:"resolution,omitempty"` // "2160p", "1080p", "720p", "480p"
	Source     string `json:"source,omitempty"`     // "remux", "bluray", "webdl", "webrip", "hdtv", "dvd", "cam", "pdtv", "satellite"
	Codec      string `json:"codec,omitempty"`      // "hevc", "avc", "av1"
	BitDepth   int    `json:"bitDepth,omitempty"`   // 10 when tagged, otherwise 0
	HDR        string `json:"hdr,omitempty"`        // "dv", "hdr10plus", "hdr10", "hlg"

	// Audio
	AudioFormat   string `json:"audioFormat,omitempty"`   // "atmos", "truehd", "dtshd", "dtsx", "dts", "flac", "pcm", "ddplus", "dd", "aac", "opus", "mp3"
	AudioChannels string `json:"audioChannels,omitempty"` // "7.1", "5.1", "2.0"

	// Edition and metadata
	Edition      string `json:"edition,omitempty"` // "theatrical", "directors", "extended", "unrated"
	ReleaseGroup string `json:"releaseGroup,omitempty"`
	Container    string `json:"container,omitempty"`

	// Scene tags
	IsProper  bool `json:"isProper,omitempty"`
	IsRepack  bool `json:"isRepack,omitempty"`
	IsRerip   bool `json:"isRerip,omitempty"`
	IsSyncfix bool `json:"isSyncfix,omitempty"`
	IsDS4K    bool `json:"isDs4k,omitempty"` // downscaled from 4K, good quality indicator

	// Warnings
	IsUpscaled        bool `json:"isUpscaled,omitempty"`
	IsSample          bool `json:"isSample,omitempty"`
	IsDisc            bool `json:"isDisc,omitempty"`
	IsArchive         bool `json:"isArchive,omitempty"`
	IsCompressedAudio bool `json:"isCompressedAudio,omitempty"` // MD, LD, LiNE
	IsHardcodedSubs   bool `json:"isHardcodedSubs,omitempty"`
	IsDubbed          bool `json:"isDubbed,omitempty"`
	IsFullscreen      bool `json:"isFullscreen,omitempty"` // cropped, avoid

	// Anime specific
	IsAnime      bool `json:"isAnime,omitempty"`
	HasDualAudio bool `json:"hasDualAudio,omitempty"`
	HasSoftSubs  bool `json:"hasSoftSubs,omitempty"`
	IsFansub     bool `json:"isFansub,omitempty"`
	Version      int  `json:"version,omitempty"` // v1, v2, v3 — default 1

	// Carried from the search result, not the title
	Size    int64 `json:"size,omitempty"`
	Seeders int   `json:"seeders,omitempty"`
}

var (
	// Season/episode patterns, in match priority order
	multiEpisodePattern = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})(?:-?E(\d{1,3})|-(\d{1,3}))\b`)
	tvPattern           = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)
	tvAltPattern        = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	absoluteEpPattern   = regexp.MustCompile(`-\s*(\d{2,4})(?:\s*v\d+)?\s*(?:[\[\(]|$)`)

	yearParenPattern = regexp.MustCompile(`\((19\d{2}|20\d{2})\)`)
	yearBarePattern  = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	// Resolution patterns; "1080p" inside a trailing group token must not
	// count, so resolution is matched against the body with the group removed.
	res2160Pattern = regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)
	res1080Pattern = regexp.MustCompile(`(?i)\b1080[pi]\b`)
	res720Pattern  = regexp.MustCompile(`(?i)\b720p\b`)
	res480Pattern  = regexp.MustCompile(`(?i)\b480p\b`)

	// Source patterns
	remuxPattern     = regexp.MustCompile(`(?i)\bremux\b`)
	blurayPattern    = regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|brrip|bdremux)\b`)
	webdlPattern     = regexp.MustCompile(`(?i)\bweb-?dl\b`)
	webripPattern    = regexp.MustCompile(`(?i)\bweb-?rip\b`)
	webBarePattern   = regexp.MustCompile(`(?i)\bweb\b`)
	hdtvPattern      = regexp.MustCompile(`(?i)\bhdtv\b`)
	pdtvPattern      = regexp.MustCompile(`(?i)\bpdtv\b`)
	satellitePattern = regexp.MustCompile(`(?i)\b(dsr|satrip|satellite)\b`)
	dvdPattern       = regexp.MustCompile(`(?i)\b(dvdrip|dvd)\b`)
	camPattern       = regexp.MustCompile(`(?i)\b(cam|hdcam|ts|hdts|telesync)\b`)

	// Codec patterns
	hevcPattern = regexp.MustCompile(`(?i)\b(hevc|x265|h\.?265)\b`)
	avcPattern  = regexp.MustCompile(`(?i)\b(avc|x264|h\.?264)\b`)
	av1Pattern  = regexp.MustCompile(`(?i)\bav1\b`)

	// HDR patterns, most specific first
	dvPattern     = regexp.MustCompile(`(?i)\b(dv|dovi|dolby[\s.]?vision)\b`)
	hdr10pPattern = regexp.MustCompile(`(?i)hdr10\+|hdr10plus`)
	hdr10Pattern  = regexp.MustCompile(`(?i)\bhdr10?\b`)
	hlgPattern    = regexp.MustCompile(`(?i)\bhlg\b`)

	// Audio format patterns, most specific first
	atmosPattern  = regexp.MustCompile(`(?i)\batmos\b`)
	truehdPattern = regexp.MustCompile(`(?i)\btrue-?hd\b`)
	dtsxPattern   = regexp.MustCompile(`(?i)\bdts[-.:]?x\b`)
	dtshdPattern  = regexp.MustCompile(`(?i)\bdts-?hd(?:[-.]?ma)?\b`)
	dtsPattern    = regexp.MustCompile(`(?i)\bdts\b`)
	flacPattern   = regexp.MustCompile(`(?i)\bflac\b`)
	pcmPattern    = regexp.MustCompile(`(?i)\b(lpcm|pcm)\b`)
	ddplusPattern = regexp.MustCompile(`(?i)\b(ddp|dd\+|e-?ac-?3|eac3)`)
	ddPattern     = regexp.MustCompile(`(?i)(?:\bdd[\s.]?[257][\s.]?[01])|(?:\bac-?3\b)|(?:\bdd\b)`)
	aacPattern    = regexp.MustCompile(`(?i)\baac\b`)
	opusPattern   = regexp.MustCompile(`(?i)\bopus\b`)
	mp3Pattern    = regexp.MustCompile(`(?i)\bmp3\b`)

	channels71Pattern = regexp.MustCompile(`7[\s.]1`)
	channels51Pattern = regexp.MustCompile(`5[\s.]1`)
	channels20Pattern = regexp.MustCompile(`2[\s.]0`)

	bit10Pattern = regexp.MustCompile(`(?i)\b10-?bits?\b`)

	// Edition patterns
	theatricalPattern = regexp.MustCompile(`(?i)\btheatrical\b`)
	directorsPattern  = regexp.MustCompile(`(?i)director'?s?[\s.]?cut`)
	extendedPattern   = regexp.MustCompile(`(?i)\bextended\b`)
	unratedPattern    = regexp.MustCompile(`(?i)\bunrated\b`)

	// Scene tags
	properPattern   = regexp.MustCompile(`(?i)\bproper\b`)
	repackPattern   = regexp.MustCompile(`(?i)\brepack\b`)
	reripPattern    = regexp.MustCompile(`(?i)\brerip\b`)
	syncfixPattern  = regexp.MustCompile(`(?i)\bsyncfix\b`)
	ds4kPattern     = regexp.MustCompile(`(?i)\bds4k\b`)
	upscaledPattern = regexp.MustCompile(`(?i)\bupscaled?\b`)
	samplePattern   = regexp.MustCompile(`(?i)\bsample\b`)

	discPattern    = regexp.MustCompile(`(?i)\b(bdmv|iso|complete[\s.]?(?:bluray|blu-ray)|dvd[59])\b`)
	archivePattern = regexp.MustCompile(`(?i)\.(rar|zip|7z)$|\brar\b`)
	// Case-sensitive: these collide with ordinary title words otherwise
	compAudioPattern  = regexp.MustCompile(`\b(MD|LD|LiNE|LINE|MicDubbed)\b`)
	hardcodedPattern  = regexp.MustCompile(`(?i)\b(hc|hardcoded|hard[\s.]?coded|hardsub|korsub)\b`)
	dubbedPattern     = regexp.MustCompile(`(?i)\bdubbed\b`)
	fullscreenPattern = regexp.MustCompile(`(?i)\b(fs|fullscreen)\b`)

	// Anime patterns
	animeGroupPattern = regexp.MustCompile(`^\[([^\]]+)\]`)
	versionPattern    = regexp.MustCompile(`(?i)v(\d+)\b`)
	dualAudioPattern  = regexp.MustCompile(`(?i)dual[\s.-]?audio`)
	softSubPattern    = regexp.MustCompile(`(?i)\b(softsubs?|multi-?subs?)\b`)
	fansubPattern     = regexp.MustCompile(`(?i)\bfansub\b`)

	groupPattern      = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
	containerPattern  = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|wmv|flv|webm|m4v)$`)
	bracketTagPattern = regexp.MustCompile(`\[[^\]]*\]`)
	separatorPattern  = regexp.MustCompile(`[\s._]+`)
)

// Parse converts a free-form release title into a ParsedRelease. It never
// fails; unrecognized fields remain at their zero values and downstream code
// treats them as unknown.
func Parse(name string) *ParsedRelease {
	r := &ParsedRelease{
		RawTitle: name,
		Version:  1,
	}

	// Container extension, stripped before everything else
	if m := containerPattern.FindStringSubmatch(name); m != nil {
		r.Container = strings.ToLower(m[1])
		name = name[:len(name)-len(m[0])]
	}

	// Anime releases lead with the fansub group in brackets
	if m := animeGroupPattern.FindStringSubmatch(name); m != nil {
		r.IsAnime = true
		r.ReleaseGroup = m[1]
	}

	// Release group: token after the final dash, unless the anime bracket won
	body := name
	if r.ReleaseGroup == "" {
		stripped := strings.TrimSpace(bracketTagPattern.ReplaceAllString(name, " "))
		if m := groupPattern.FindStringSubmatch(stripped); m != nil {
			candidate := m[1]
			// Channel suffixes like "DDP5.1-NTb" keep the group; bare
			// numeric tails like "-2012" are years, not groups.
			if _, err := strconv.Atoi(candidate); err != nil {
				r.ReleaseGroup = candidate
				body = strings.TrimSuffix(stripped, "-"+candidate)
			}
		}
	}

	r.parseEpisodes(name)
	r.parseYear(body)
	r.parseVideo(body)
	r.parseAudio(body)
	r.parseFlags(body)
	r.Title = extractTitle(name, r)

	return r
}

// parseEpisodes extracts season/episode numbering with the priority
// multi-episode > SxxEyy > NxNN > anime absolute. Explicit SxxEyy always wins
// over absolute numbering.
func (r *ParsedRelease) parseEpisodes(name string) {
	if m := multiEpisodePattern.FindStringSubmatch(name); m != nil {
		r.Season, _ = strconv.Atoi(m[1])
		r.Episode, _ = strconv.Atoi(m[2])
		end := m[3]
		if end == "" {
			end = m[4]
		}
		r.EpisodeEnd, _ = strconv.Atoi(end)
		if r.EpisodeEnd <= r.Episode {
			r.EpisodeEnd = 0
		}
		return
	}
	if m := tvPattern.FindStringSubmatch(name); m != nil {
		r.Season, _ = strconv.Atoi(m[1])
		r.Episode, _ = strconv.Atoi(m[2])
		return
	}
	if m := tvAltPattern.FindStringSubmatch(name); m != nil {
		// Years never become episode numbers; 19x05 is fine, 1923 cannot
		// match because the pattern requires the "x".
		r.Season, _ = strconv.Atoi(m[1])
		r.Episode, _ = strconv.Atoi(m[2])
		return
	}
	if r.IsAnime {
		if m := absoluteEpPattern.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n < 1900 {
				r.Absolute = n
			}
		}
	}
}

func (r *ParsedRelease) parseYear(body string) {
	if m := yearParenPattern.FindStringSubmatch(body); m != nil {
		r.Year, _ = strconv.Atoi(m[1])
		return
	}
	if m := yearBarePattern.FindAllString(body, -1); len(m) > 0 {
		// Prefer the last bare year so titles that are themselves years
		// ("2012 (2009)") resolve to the release year.
		r.Year, _ = strconv.Atoi(m[len(m)-1])
	}
}

func (r *ParsedRelease) parseVideo(body string) {
	switch {
	case res2160Pattern.MatchString(body):
		r.Resolution = "2160p"
	case res1080Pattern.MatchString(body):
		r.Resolution = "1080p"
	case res720Pattern.MatchString(body):
		r.Resolution = "720p"
	case res480Pattern.MatchString(body):
		r.Resolution = "480p"
	}

	switch {
	case camPattern.MatchString(body):
		r.Source = "cam"
	case remuxPattern.MatchString(body):
		r.Source = "remux"
	case blurayPattern.MatchString(body):
		r.Source = "bluray"
	case webdlPattern.MatchString(body):
		r.Source = "webdl"
	case webripPattern.MatchString(body):
		r.Source = "webrip"
	case webBarePattern.MatchString(body):
		// Bare WEB defaults to WEB-DL
		r.Source = "webdl"
	case hdtvPattern.MatchString(body):
		r.Source = "hdtv"
	case pdtvPattern.MatchString(body):
		r.Source = "pdtv"
	case satellitePattern.MatchString(body):
		r.Source = "satellite"
	case dvdPattern.MatchString(body):
		r.Source = "dvd"
	}

	switch {
	case hevcPattern.MatchString(body):
		r.Codec = "hevc"
	case av1Pattern.MatchString(body):
		r.Codec = "av1"
	case avcPattern.MatchString(body):
		r.Codec = "avc"
	}

	switch {
	case dvPattern.MatchString(body):
		r.HDR = "dv"
	case hdr10pPattern.MatchString(body):
		r.HDR = "hdr10plus"
	case hdr10Pattern.MatchString(body):
		r.HDR = "hdr10"
	case hlgPattern.MatchString(body):
		r.HDR = "hlg"
	}

	if bit10Pattern.MatchString(body) {
		r.BitDepth = 10
	}
}

func (r *ParsedRelease) parseAudio(body string) {
	switch {
	case atmosPattern.MatchString(body):
		r.AudioFormat = "atmos"
	case truehdPattern.MatchString(body):
		r.AudioFormat = "truehd"
	case dtsxPattern.MatchString(body):
		r.AudioFormat = "dtsx"
	case dtshdPattern.MatchString(body):
		r.AudioFormat = "dtshd"
	case flacPattern.MatchString(body):
		r.AudioFormat = "flac"
	case pcmPattern.MatchString(body):
		r.AudioFormat = "pcm"
	case ddplusPattern.MatchString(body):
		r.AudioFormat = "ddplus"
	case dtsPattern.MatchString(body):
		r.AudioFormat = "dts"
	case ddPattern.MatchString(body):
		r.AudioFormat = "dd"
	case aacPattern.MatchString(body):
		r.AudioFormat = "aac"
	case opusPattern.MatchString(body):
		r.AudioFormat = "opus"
	case mp3Pattern.MatchString(body):
		r.AudioFormat = "mp3"
	}

	switch {
	case channels71Pattern.MatchString(body):
		r.AudioChannels = "7.1"
	case channels51Pattern.MatchString(body):
		r.AudioChannels = "5.1"
	case channels20Pattern.MatchString(body):
		r.AudioChannels = "2.0"
	}
}

func (r *ParsedRelease) parseFlags(body string) {
	switch {
	case theatricalPattern.MatchString(body):
		r.Edition = "theatrical"
	case directorsPattern.MatchString(body):
		r.Edition = "directors"
	case extendedPattern.MatchString(body):
		r.Edition = "extended"
	case unratedPattern.MatchString(body):
		r.Edition = "unrated"
	}

	r.IsProper = properPattern.MatchString(body)
	r.IsRepack = repackPattern.MatchString(body)
	r.IsRerip = reripPattern.MatchString(body)
	r.IsSyncfix = syncfixPattern.MatchString(body)
	r.IsDS4K = ds4kPattern.MatchString(body)
	r.IsUpscaled = upscaledPattern.MatchString(body)
	r.IsSample = samplePattern.MatchString(body)
	r.IsDisc = discPattern.MatchString(body)
	r.IsArchive = archivePattern.MatchString(body)
	r.IsCompressedAudio = compAudioPattern.MatchString(body)
	r.IsHardcodedSubs = hardcodedPattern.MatchString(body)
	r.IsDubbed = dubbedPattern.MatchString(body)
	r.IsFullscreen = fullscreenPattern.MatchString(body)

	r.HasDualAudio = dualAudioPattern.MatchString(body)
	r.HasSoftSubs = softSubPattern.MatchString(body)
	r.IsFansub = fansubPattern.MatchString(body)

	if r.IsAnime {
		if m := versionPattern.FindStringSubmatch(body); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 1 {
				r.Version = v
			}
		}
	}
}

// extractTitle returns the cleaned human title: everything before the first
// structural marker (year, episode numbering, resolution, source).
func extractTitle(name string, r *ParsedRelease) string {
	title := name

	if r.IsAnime {
		title = animeGroupPattern.ReplaceAllString(title, "")
		if loc := tvPattern.FindStringIndex(title); loc != nil && loc[0] > 0 {
			title = title[:loc[0]]
		} else if idx := strings.Index(title, " - "); idx > 0 {
			title = title[:idx]
		}
		return cleanTitle(title)
	}

	end := len(title)
	markers := []*regexp.Regexp{
		multiEpisodePattern, tvPattern, tvAltPattern,
		res2160Pattern, res1080Pattern, res720Pattern, res480Pattern,
		remuxPattern, blurayPattern, webdlPattern, webripPattern,
		hdtvPattern, dvdPattern,
	}
	if r.Year > 0 {
		yearStr := strconv.Itoa(r.Year)
		if idx := strings.Index(title, yearStr); idx > 0 {
			end = idx
		}
	}
	for _, m := range markers {
		if loc := m.FindStringIndex(title); loc != nil && loc[0] > 0 && loc[0] < end {
			end = loc[0]
		}
	}

	return cleanTitle(title[:end])
}

func cleanTitle(title string) string {
	title = bracketTagPattern.ReplaceAllString(title, " ")
	title = separatorPattern.ReplaceAllString(title, " ")
	title = strings.Trim(title, " -(")
	return strings.TrimSpace(title)
}
