package quality

// BuiltInPresets returns the presets seeded into a fresh database. "Balanced"
// ships as the default.
func BuiltInPresets() []Preset {
	return []Preset{
		{
			Name:              "Best Quality",
			Resolution:        "2160p",
			MinResolution:     "1080p",
			Sources:           []string{"remux", "bluray"},
			HDRFormats:        []string{"dv", "hdr10plus", "hdr10"},
			AudioFormats:      []string{"atmos", "truehd", "dtshd"},
			MinSeeders:        2,
			CutoffResolution:  "2160p",
			CutoffSource:      "remux",
			CutoffMetBehavior: CutoffStop,
			AutoUpgrade:       true,
		},
		{
			Name:              "High Quality",
			Resolution:        "2160p",
			MinResolution:     "1080p",
			Sources:           []string{"remux", "bluray", "webdl"},
			MinSeeders:        3,
			CutoffResolution:  "2160p",
			CutoffSource:      "webdl",
			CutoffMetBehavior: CutoffStop,
			AutoUpgrade:       true,
		},
		{
			Name:              "Balanced",
			IsDefault:         true,
			Resolution:        "1080p",
			MinResolution:     "720p",
			Sources:           []string{"bluray", "webdl", "webrip"},
			MinSeeders:        3,
			CutoffResolution:  "1080p",
			CutoffSource:      "webdl",
			CutoffMetBehavior: CutoffStop,
			AutoUpgrade:       true,
		},
		{
			Name:              "Storage Saver",
			Resolution:        "1080p",
			MinResolution:     "720p",
			Sources:           []string{"webdl", "webrip", "hdtv"},
			Codec:             "hevc",
			MinSeeders:        5,
			CutoffResolution:  "1080p",
			CutoffSource:      "webrip",
			CutoffMetBehavior: CutoffStop,
			PreferSmallerSize: true,
		},
		{
			Name:              "Anime",
			Resolution:        "1080p",
			MinResolution:     "720p",
			Sources:           []string{"bluray", "webdl", "webrip"},
			MinSeeders:        2,
			CutoffResolution:  "1080p",
			CutoffSource:      "webdl",
			CutoffMetBehavior: CutoffContinue,
			AutoUpgrade:       true,
			PreferDualAudio:   true,
			AllowFansub:       true,
		},
	}
}
