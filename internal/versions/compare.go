// Package versions orders dataset version identifiers. Sources publish
// either semantic versions ("1.2.0") or date-like identifiers ("2024-01");
// both order correctly under semver-with-string-fallback comparison.
package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than
// oldVersion. Semantic versioning is used when both strings are valid
// semver; otherwise comparison falls back to lexicographic ordering,
// which is correct for ISO date identifiers.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// Latest returns the greatest version in the slice, or an empty string for
// an empty slice
func Latest(versions []string) string {
	var latest string
	for _, v := range versions {
		if latest == "" || IsNewerVersion(v, latest) {
			latest = v
		}
	}
	return latest
}
