package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrose/windrose/internal/parser"
)

func TestComputeTier(t *testing.T) {
	tests := []struct {
		resolution string
		source     string
		tier       string
	}{
		{"2160p", "remux", TierRemux2160p},
		{"2160p", "bluray", TierBluray2160p},
		{"2160p", "webdl", TierWEBDL2160p},
		{"1080p", "bluray", TierBluray1080p},
		{"1080p", "webdl", TierWEBDL1080p},
		{"720p", "remux", TierBluray720p},
		{"720p", "hdtv", TierHDTV720p},
		{"1080p", "pdtv", TierHDTV1080p},
		{"", "dvd", TierDVD},
		{"480p", "webdl", TierSDTV},
		{"", "hdtv", TierSDTV},
		{"", "", TierUnknown},
		{"1080p", "", TierUnknown},
	}

	for _, tt := range tests {
		r := &parser.ParsedRelease{Resolution: tt.resolution, Source: tt.source}
		assert.Equal(t, tt.tier, ComputeTier(r), "%s/%s", tt.resolution, tt.source)
	}
}

func TestScore_Modifiers(t *testing.T) {
	r := &parser.ParsedRelease{
		Resolution:   "1080p",
		Source:       "bluray",
		Codec:        "avc",
		ReleaseGroup: "GROUP",
	}
	assert.Equal(t, 50003, Score(r, nil, nil, "movie"), "Bluray-1080p base plus AVC")

	r.HDR = "dv"
	r.AudioFormat = "atmos"
	r.BitDepth = 10
	r.IsProper = true
	assert.Equal(t, 50003+20+20+5+5, Score(r, nil, nil, "movie"))
}

func TestScore_SeedersBonusCapped(t *testing.T) {
	r := &parser.ParsedRelease{Resolution: "1080p", Source: "webdl", Seeders: 500}
	assert.Equal(t, 40000+10, Score(r, nil, nil, "movie"))

	r.Seeders = 25
	assert.Equal(t, 40000+2, Score(r, nil, nil, "movie"))
}

func TestScore_TrustedGroup(t *testing.T) {
	lists := parser.DefaultGroupLists()
	r := &parser.ParsedRelease{Resolution: "1080p", Source: "webdl", ReleaseGroup: "NTb", Seeders: 5}

	assert.Equal(t, 40005, Score(r, nil, lists, "tv"))
	assert.Equal(t, 40000, Score(r, nil, lists, "music"), "trust is scoped per media type")
}

func TestScore_HardRejection(t *testing.T) {
	lists := parser.DefaultGroupLists()
	preset := &Preset{MinSeeders: 3, MinResolution: "720p"}

	tests := []struct {
		name    string
		release *parser.ParsedRelease
	}{
		{"cam source", &parser.ParsedRelease{Resolution: "1080p", Source: "cam", Seeders: 10}},
		{"hardcoded subs", &parser.ParsedRelease{Resolution: "1080p", Source: "webdl", IsHardcodedSubs: true, Seeders: 10}},
		{"compressed audio", &parser.ParsedRelease{Resolution: "1080p", Source: "bluray", IsCompressedAudio: true, Seeders: 10}},
		{"sample", &parser.ParsedRelease{Resolution: "1080p", Source: "bluray", IsSample: true, Seeders: 10}},
		{"blocked group", &parser.ParsedRelease{Resolution: "1080p", Source: "bluray", ReleaseGroup: "YIFY", Seeders: 10}},
		{"too few seeders", &parser.ParsedRelease{Resolution: "1080p", Source: "bluray", Seeders: 1}},
		{"below min resolution", &parser.ParsedRelease{Resolution: "480p", Source: "bluray", Seeders: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, RejectedScore, Score(tt.release, preset, lists, "movie"))
			ok, _ := MatchesTarget(tt.release, preset, lists, "movie")
			assert.False(t, ok)
		})
	}
}

func TestScore_ResolutionMonotonicity(t *testing.T) {
	base := parser.ParsedRelease{Source: "webdl", Codec: "hevc", Seeders: 20}

	prev := RejectedScore
	for _, res := range []string{"480p", "720p", "1080p", "2160p"} {
		r := base
		r.Resolution = res
		score := Score(&r, nil, nil, "tv")
		assert.Greater(t, score, prev, "resolution %s must outrank the previous tier", res)
		prev = score
	}
}

func TestCheckTargetMatch(t *testing.T) {
	preset := &Preset{
		Resolution: "1080p",
		Sources:    []string{"webdl", "bluray"},
	}

	assert.True(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "1080p", Source: "webdl"}, preset))
	assert.True(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "2160p", Source: "bluray"}, preset), "higher resolution still matches")
	assert.False(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "720p", Source: "bluray"}, preset))
	assert.False(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "1080p", Source: "hdtv"}, preset))

	preset.Codec = "hevc"
	assert.False(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "1080p", Source: "webdl", Codec: "avc"}, preset))
	assert.True(t, CheckTargetMatch(&parser.ParsedRelease{Resolution: "1080p", Source: "webdl", Codec: "hevc"}, preset))
}

func TestMeetsCutoff(t *testing.T) {
	preset := &Preset{CutoffResolution: "2160p", CutoffSource: "bluray"}

	assert.False(t, MeetsCutoff(&parser.ParsedRelease{Resolution: "1080p", Source: "webdl"}, preset))
	assert.False(t, MeetsCutoff(&parser.ParsedRelease{Resolution: "2160p", Source: "webdl"}, preset))
	assert.True(t, MeetsCutoff(&parser.ParsedRelease{Resolution: "2160p", Source: "bluray"}, preset))
	assert.True(t, MeetsCutoff(&parser.ParsedRelease{Resolution: "2160p", Source: "remux"}, preset))

	open := &Preset{}
	assert.True(t, MeetsCutoff(&parser.ParsedRelease{}, open), "unset cutoff fields count as satisfied")
}

func TestSelectBestRelease_TargetMatchDominatesScore(t *testing.T) {
	preset := &Preset{
		Resolution:    "1080p",
		MinResolution: "720p",
		Sources:       []string{"webdl", "bluray"},
		MinSeeders:    3,
	}

	a := &parser.ParsedRelease{RawTitle: "A", Resolution: "1080p", Source: "webdl", Seeders: 10}
	b := &parser.ParsedRelease{RawTitle: "B", Resolution: "720p", Source: "bluray", Seeders: 50}

	best := SelectBestRelease([]*parser.ParsedRelease{b, a}, preset, nil, "movie")
	require.NotNil(t, best)
	assert.Equal(t, "A", best.RawTitle)
}

func TestSelectBestRelease_AllRejected(t *testing.T) {
	preset := &Preset{MinSeeders: 5}
	cands := []*parser.ParsedRelease{
		{Resolution: "1080p", Source: "cam", Seeders: 100},
		{Resolution: "1080p", Source: "webdl", Seeders: 1},
	}
	assert.Nil(t, SelectBestRelease(cands, preset, nil, "movie"))
}

func TestRankReleases_CutoffFirst(t *testing.T) {
	preset := &Preset{CutoffResolution: "1080p", CutoffSource: "bluray"}

	belowCutoff := &parser.ParsedRelease{RawTitle: "web", Resolution: "1080p", Source: "webdl", HDR: "dv", Seeders: 90}
	atCutoff := &parser.ParsedRelease{RawTitle: "bd", Resolution: "1080p", Source: "bluray"}

	ranked := RankReleases([]*parser.ParsedRelease{belowCutoff, atCutoff}, preset, nil, "movie")
	require.Len(t, ranked, 2)
	assert.Equal(t, "bd", ranked[0].Release.RawTitle, "meeting the cutoff outranks a higher raw score")
	assert.True(t, ranked[0].MeetsCutoff)
}

func TestIsUpgrade(t *testing.T) {
	preset := &Preset{MinResolution: "720p"}
	current := CurrentQuality{Resolution: "1080p", Source: "webdl"}

	assert.True(t, IsUpgrade(&parser.ParsedRelease{Resolution: "2160p", Source: "remux"}, current, preset, nil, "movie"))
	assert.True(t, IsUpgrade(&parser.ParsedRelease{Resolution: "1080p", Source: "bluray"}, current, preset, nil, "movie"))
	assert.False(t, IsUpgrade(&parser.ParsedRelease{Resolution: "1080p", Source: "webrip"}, current, preset, nil, "movie"))
	assert.False(t, IsUpgrade(&parser.ParsedRelease{Resolution: "1080p", Source: "webdl"}, current, preset, nil, "movie"), "equal quality is not an upgrade")
	assert.False(t, IsUpgrade(&parser.ParsedRelease{Resolution: "2160p", Source: "cam"}, current, preset, nil, "movie"), "rejected releases never upgrade")
}

func TestCutoffScore(t *testing.T) {
	assert.Equal(t, 40000, CutoffScore(&Preset{CutoffResolution: "1080p", CutoffSource: "webdl"}))
	assert.Equal(t, 100000, CutoffScore(&Preset{CutoffResolution: "2160p", CutoffSource: "remux"}))
}

func TestBuiltInPresets(t *testing.T) {
	presets := BuiltInPresets()
	require.NotEmpty(t, presets)

	defaults := 0
	for _, p := range presets {
		if p.IsDefault {
			defaults++
		}
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.CutoffResolution, "%s needs a cutoff", p.Name)
	}
	assert.Equal(t, 1, defaults, "exactly one built-in preset is the default")
}
