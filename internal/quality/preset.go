package quality

import (
	"sort"
	"strings"

	"github.com/windrose/windrose/internal/parser"
)

// CutoffMetBehavior controls what happens once an item reaches its cutoff.
type CutoffMetBehavior string

const (
	CutoffStop     CutoffMetBehavior = "stop"     // stop searching entirely
	CutoffContinue CutoffMetBehavior = "continue" // keep taking strictly better releases
)

// Preset is a user-defined quality policy: what is acceptable, what is
// preferred, and when to stop upgrading.
type Preset struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`

	// Target: what the preset wants
	Resolution       string   `json:"resolution"`    // e.g. "1080p"
	MinResolution    string   `json:"minResolution"` // hard floor
	Sources          []string `json:"sources"`       // acceptable sources for a target match
	HDRFormats       []string `json:"hdrFormats,omitempty"`
	Codec            string   `json:"codec,omitempty"`
	AudioFormats     []string `json:"audioFormats,omitempty"`
	AudioChannels    []string `json:"audioChannels,omitempty"`
	PreferredEdition string   `json:"preferredEdition,omitempty"`
	MinSeeders       int      `json:"minSeeders"`

	// Cutoff: when to stop upgrading
	CutoffResolution  string            `json:"cutoffResolution"`
	CutoffSource      string            `json:"cutoffSource"`
	CutoffMetBehavior CutoffMetBehavior `json:"cutoffMetBehavior"`

	AutoUpgrade       bool `json:"autoUpgrade"`
	PreferSmallerSize bool `json:"preferSmallerSize"`

	// Anime handling
	PreferDualAudio bool `json:"preferDualAudio"`
	AllowFansub     bool `json:"allowFansub"`
}

// CurrentQuality is the stored quality of a library item, used to decide
// whether a candidate release is an upgrade.
type CurrentQuality struct {
	Resolution  string
	Source      string
	HDR         string
	AudioFormat string
	Edition     string
	Score       int
}

// MatchesTarget applies the hard-rejection rules and minimum-resolution floor
// and returns whether the release is acceptable at all, along with its score.
func MatchesTarget(r *parser.ParsedRelease, preset *Preset, lists *parser.GroupLists, mediaType string) (bool, int) {
	score := Score(r, preset, lists, mediaType)
	return score != RejectedScore, score
}

// CheckTargetMatch reports whether the release satisfies every explicit
// requirement of the preset, not merely the acceptance floor.
func CheckTargetMatch(r *parser.ParsedRelease, preset *Preset) bool {
	if preset.Resolution != "" && ResolutionRank(r.Resolution) < ResolutionRank(preset.Resolution) {
		return false
	}
	if len(preset.Sources) > 0 && !containsFold(preset.Sources, r.Source) {
		return false
	}
	if len(preset.HDRFormats) > 0 && !containsFold(preset.HDRFormats, r.HDR) {
		return false
	}
	if preset.Codec != "" && !strings.EqualFold(preset.Codec, r.Codec) {
		return false
	}
	if len(preset.AudioFormats) > 0 && !containsFold(preset.AudioFormats, r.AudioFormat) {
		return false
	}
	if len(preset.AudioChannels) > 0 && !containsFold(preset.AudioChannels, r.AudioChannels) {
		return false
	}
	return true
}

// MeetsCutoff reports whether the release is at or above the preset's cutoff
// resolution and source rank. Unset cutoff fields count as satisfied.
func MeetsCutoff(r *parser.ParsedRelease, preset *Preset) bool {
	if preset.CutoffResolution != "" && ResolutionRank(r.Resolution) < ResolutionRank(preset.CutoffResolution) {
		return false
	}
	if preset.CutoffSource != "" && SourceRank(r.Source) < SourceRank(preset.CutoffSource) {
		return false
	}
	return true
}

// RankedRelease pairs a candidate with its evaluation against a preset.
type RankedRelease struct {
	Release     *parser.ParsedRelease
	Score       int
	TargetMatch bool
	MeetsCutoff bool
}

// RankReleases evaluates and sorts candidates: meets-cutoff first, then
// target matches, then score. Hard-rejected releases are dropped. The sort is
// stable, so the aggregator's seeders/size ordering breaks remaining ties.
func RankReleases(candidates []*parser.ParsedRelease, preset *Preset, lists *parser.GroupLists, mediaType string) []RankedRelease {
	ranked := make([]RankedRelease, 0, len(candidates))
	for _, c := range candidates {
		ok, score := MatchesTarget(c, preset, lists, mediaType)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedRelease{
			Release:     c,
			Score:       score,
			TargetMatch: CheckTargetMatch(c, preset),
			MeetsCutoff: MeetsCutoff(c, preset),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.MeetsCutoff != b.MeetsCutoff {
			return a.MeetsCutoff
		}
		if a.TargetMatch != b.TargetMatch {
			return a.TargetMatch
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if preset.PreferSmallerSize && a.Release.Size != b.Release.Size {
			return a.Release.Size < b.Release.Size
		}
		return false
	})

	return ranked
}

// SelectBestRelease returns the best acceptable candidate, or nil when every
// candidate is rejected.
func SelectBestRelease(candidates []*parser.ParsedRelease, preset *Preset, lists *parser.GroupLists, mediaType string) *parser.ParsedRelease {
	ranked := RankReleases(candidates, preset, lists, mediaType)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0].Release
}

// IsUpgrade reports whether the candidate strictly improves on the stored
// quality of an item. The current quality is re-scored through the same table
// so stored scores from older score tables never skew the comparison.
func IsUpgrade(r *parser.ParsedRelease, current CurrentQuality, preset *Preset, lists *parser.GroupLists, mediaType string) bool {
	ok, score := MatchesTarget(r, preset, lists, mediaType)
	if !ok {
		return false
	}

	synthetic := &parser.ParsedRelease{
		Resolution:  current.Resolution,
		Source:      current.Source,
		HDR:         current.HDR,
		AudioFormat: current.AudioFormat,
		Edition:     current.Edition,
	}
	currentScore := Score(synthetic, nil, nil, mediaType)

	return score > currentScore
}

// CutoffScore returns the base score of the preset's cutoff tier, used to
// stamp MediaQualityStatus rows.
func CutoffScore(preset *Preset) int {
	synthetic := &parser.ParsedRelease{
		Resolution: preset.CutoffResolution,
		Source:     preset.CutoffSource,
	}
	return BaseScore(ComputeTier(synthetic))
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
