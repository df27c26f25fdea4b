package parser

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var groupsYAML []byte

// GroupLists holds per-media-type release group reputation lists. Lookups are
// case-insensitive. The embedded defaults can be replaced at runtime from
// settings.
type GroupLists struct {
	mu      sync.RWMutex
	Trusted map[string][]string `yaml:"trusted"` // media type -> groups
	Blocked []string            `yaml:"blocked"`
}

var defaultLists = loadDefaultLists()

func loadDefaultLists() *GroupLists {
	g := &GroupLists{}
	if err := yaml.Unmarshal(groupsYAML, g); err != nil {
		// The embedded file ships with the binary; failure here means a
		// broken build, not a runtime condition worth surfacing.
		return &GroupLists{Trusted: map[string][]string{}}
	}
	return g
}

// DefaultGroupLists returns the lists embedded in the binary.
func DefaultGroupLists() *GroupLists {
	return defaultLists
}

// IsTrusted reports whether group is on the trusted list for mediaType
// ("movie", "tv", "anime", "music", "book").
func (g *GroupLists) IsTrusted(group, mediaType string) bool {
	if group == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, t := range g.Trusted[mediaType] {
		if strings.EqualFold(t, group) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether group is on the global blocklist.
func (g *GroupLists) IsBlocked(group string) bool {
	if group == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, b := range g.Blocked {
		if strings.EqualFold(b, group) {
			return true
		}
	}
	return false
}

// Replace swaps in new lists, typically loaded from settings.
func (g *GroupLists) Replace(trusted map[string][]string, blocked []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Trusted = trusted
	g.Blocked = blocked
}
