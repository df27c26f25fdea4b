// Package quality scores parsed releases and evaluates them against presets.
package quality

import "github.com/windrose/windrose/internal/parser"

// Quality tiers, highest first. A tier crosses resolution with source;
// releases that fit no tier land on TierUnknown.
const (
	TierRemux2160p  = "Remux-2160p"
	TierBluray2160p = "Bluray-2160p"
	TierWEBDL2160p  = "WEBDL-2160p"
	TierWEBRip2160p = "WEBRip-2160p"
	TierHDTV2160p   = "HDTV-2160p"
	TierRemux1080p  = "Remux-1080p"
	TierBluray1080p = "Bluray-1080p"
	TierWEBDL1080p  = "WEBDL-1080p"
	TierWEBRip1080p = "WEBRip-1080p"
	TierHDTV1080p   = "HDTV-1080p"
	TierBluray720p  = "Bluray-720p"
	TierWEBDL720p   = "WEBDL-720p"
	TierWEBRip720p  = "WEBRip-720p"
	TierHDTV720p    = "HDTV-720p"
	TierDVD         = "DVD"
	TierSDTV        = "SDTV"
	TierUnknown     = "Unknown"
)

// tierScores fixes the base score per tier. The spacing leaves the additive
// modifiers (at most a few dozen points) unable to jump a release across
// tiers.
var tierScores = map[string]int{
	TierRemux2160p:  100000,
	TierBluray2160p: 90000,
	TierWEBDL2160p:  80000,
	TierWEBRip2160p: 70000,
	TierHDTV2160p:   65000,
	TierRemux1080p:  60000,
	TierBluray1080p: 50000,
	TierWEBDL1080p:  40000,
	TierWEBRip1080p: 30000,
	TierHDTV1080p:   25000,
	TierBluray720p:  20000,
	TierWEBDL720p:   15000,
	TierWEBRip720p:  10000,
	TierHDTV720p:    8000,
	TierDVD:         5000,
	TierSDTV:        2000,
	TierUnknown:     1000,
}

var resolutionRank = map[string]int{
	"2160p": 4,
	"1080p": 3,
	"720p":  2,
	"480p":  1,
}

var sourceRank = map[string]int{
	"remux":     5,
	"bluray":    4,
	"webdl":     3,
	"webrip":    2,
	"hdtv":      1,
	"pdtv":      1,
	"satellite": 1,
	"dvd":       0,
}

// ComputeTier maps a parsed release onto its quality tier.
func ComputeTier(r *parser.ParsedRelease) string {
	if r.Source == "dvd" {
		return TierDVD
	}
	if r.Resolution == "480p" {
		return TierSDTV
	}

	src := r.Source
	switch src {
	case "pdtv", "satellite":
		src = "hdtv"
	}

	switch r.Resolution {
	case "2160p":
		switch src {
		case "remux":
			return TierRemux2160p
		case "bluray":
			return TierBluray2160p
		case "webdl":
			return TierWEBDL2160p
		case "webrip":
			return TierWEBRip2160p
		case "hdtv":
			return TierHDTV2160p
		}
	case "1080p":
		switch src {
		case "remux":
			return TierRemux1080p
		case "bluray":
			return TierBluray1080p
		case "webdl":
			return TierWEBDL1080p
		case "webrip":
			return TierWEBRip1080p
		case "hdtv":
			return TierHDTV1080p
		}
	case "720p":
		switch src {
		case "remux", "bluray":
			return TierBluray720p
		case "webdl":
			return TierWEBDL720p
		case "webrip":
			return TierWEBRip720p
		case "hdtv":
			return TierHDTV720p
		}
	case "":
		// Source alone still places SD broadcast rips
		if src == "hdtv" {
			return TierSDTV
		}
	}

	return TierUnknown
}

// BaseScore returns the fixed base score for a tier.
func BaseScore(tier string) int {
	if s, ok := tierScores[tier]; ok {
		return s
	}
	return tierScores[TierUnknown]
}

// ResolutionRank orders resolutions for comparisons; unknown is 0.
func ResolutionRank(res string) int {
	return resolutionRank[res]
}

// SourceRank orders sources remux > bluray > webdl > webrip > hdtv.
func SourceRank(src string) int {
	return sourceRank[src]
}
