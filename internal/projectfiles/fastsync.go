package projectfiles

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/openmined/livesync/internal/livesync"
)

// FastSyncRules lists the device paths a running app can pick up without a
// restart. A path is fast-syncable when it matches Include and not Exclude.
type FastSyncRules struct {
	Include []string
	Exclude []string
}

var DefaultFastSyncRules = map[livesync.Platform]FastSyncRules{
	livesync.PlatformAndroid: {
		Include: []string{"**/*.{js,mjs,css,scss,xml,html,json}", "**/*.{png,jpg,jpeg,gif,svg,webp}"},
		Exclude: []string{"App_Resources/**", "**/package.json", "**/*.gradle"},
	},
	livesync.PlatformIOS: {
		Include: []string{"**/*.{js,mjs,css,scss,xml,html,json}", "**/*.{png,jpg,jpeg,gif,svg,webp}"},
		Exclude: []string{"App_Resources/**", "**/package.json", "**/*.plist", "**/*.xcconfig"},
	},
}

// NewFastSyncPredicate validates every glob up front. Platforms missing from
// rules never fast sync.
func NewFastSyncPredicate(rules map[livesync.Platform]FastSyncRules) (livesync.FastSyncPredicate, error) {
	for platform, r := range rules {
		for _, pattern := range append(append([]string{}, r.Include...), r.Exclude...) {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("fast sync rules for %s: invalid pattern %q", platform, pattern)
			}
		}
	}

	return func(platform livesync.Platform, file livesync.LocalFile) bool {
		r, ok := rules[platform]
		if !ok {
			return false
		}
		return matchAny(r.Include, file.RemotePath) && !matchAny(r.Exclude, file.RemotePath)
	}, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if doublestar.MatchUnvalidated(pattern, name) {
			return true
		}
	}
	return false
}
