package mediainfo

import "strings"

// detectHDR classifies the dynamic range of a video stream from its color
// metadata. Returns "dv", "hdr10plus", "hdr10", "hlg" or "" for SDR, matching
// the release-parse vocabulary.
func detectHDR(colorTransfer, colorPrimaries string, bitDepth int, hasDolbyVision, hasHDR10Plus bool) string {
	transfer := strings.ToLower(colorTransfer)
	primaries := strings.ToLower(colorPrimaries)

	switch {
	case hasDolbyVision:
		return "dv"
	case hasHDR10Plus:
		return "hdr10plus"
	case isPQ(transfer) && isBT2020(primaries):
		return "hdr10"
	case isHLG(transfer):
		return "hlg"
	case bitDepth >= 10 && isBT2020(primaries):
		// Wide-gamut 10-bit without PQ metadata still displays as HDR10
		return "hdr10"
	default:
		return ""
	}
}

func isPQ(transfer string) bool {
	return strings.Contains(transfer, "smpte2084") ||
		strings.Contains(transfer, "smpte st 2084") ||
		transfer == "pq"
}

func isBT2020(primaries string) bool {
	return strings.Contains(primaries, "bt2020") || strings.Contains(primaries, "bt.2020")
}

func isHLG(transfer string) bool {
	return strings.Contains(transfer, "arib-std-b67") || strings.Contains(transfer, "hlg")
}
