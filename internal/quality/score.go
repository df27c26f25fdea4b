package quality

import "github.com/windrose/windrose/internal/parser"

// RejectedScore marks a release that failed a hard rejection rule. It sits
// below every tier's base score so rejected releases never outrank anything.
const RejectedScore = -1000

// Rejected reports whether the release trips a hard rejection rule for the
// preset: cam source, hardcoded subs, compressed audio, samples, blocked
// groups, too few seeders, or resolution below the preset floor.
func Rejected(r *parser.ParsedRelease, preset *Preset, lists *parser.GroupLists) bool {
	if r.Source == "cam" || r.IsHardcodedSubs || r.IsCompressedAudio || r.IsSample {
		return true
	}
	if lists != nil && lists.IsBlocked(r.ReleaseGroup) {
		return true
	}
	if preset != nil {
		if preset.MinSeeders > 0 && r.Seeders < preset.MinSeeders {
			return true
		}
		if preset.MinResolution != "" && ResolutionRank(r.Resolution) < ResolutionRank(preset.MinResolution) {
			return true
		}
	}
	return false
}

// Score computes the comparable score for a release: tier base plus additive
// modifiers, or RejectedScore when a hard rejection applies. mediaType feeds
// the trusted-group lookup ("movie", "tv", "anime", ...).
func Score(r *parser.ParsedRelease, preset *Preset, lists *parser.GroupLists, mediaType string) int {
	if Rejected(r, preset, lists) {
		return RejectedScore
	}

	score := BaseScore(ComputeTier(r))

	switch r.HDR {
	case "dv":
		score += 20
	case "hdr10plus":
		score += 15
	case "hdr10":
		score += 10
	case "hlg":
		score += 5
	}

	switch r.AudioFormat {
	case "atmos":
		score += 20
	case "truehd", "dtshd", "dtsx":
		score += 15
	case "flac":
		score += 10
	case "ddplus":
		score += 5
	case "dts":
		score += 3
	case "dd":
		score += 2
	}

	switch r.Codec {
	case "hevc", "av1":
		score += 5
	case "avc":
		score += 3
	}

	if r.BitDepth == 10 {
		score += 5
	}

	if lists != nil {
		lookupType := mediaType
		if r.IsAnime {
			lookupType = "anime"
		}
		if lists.IsTrusted(r.ReleaseGroup, lookupType) {
			score += 5
		}
	}

	if r.IsProper || r.IsRepack {
		score += 5
	}
	if r.IsRerip || r.IsSyncfix {
		score += 5
	}
	if r.IsDS4K {
		score += 3
	}

	if r.IsAnime && r.Version > 1 {
		score += 3 * (r.Version - 1)
	}
	if r.HasDualAudio && preset != nil && preset.PreferDualAudio {
		score += 10
	}

	if r.Seeders > 0 {
		bonus := r.Seeders / 10
		if bonus > 10 {
			bonus = 10
		}
		score += bonus
	}

	if r.IsFullscreen {
		score -= 20
	}
	if r.IsDubbed {
		score -= 10
	}
	if r.IsFansub {
		score -= 5
	}

	return score
}
