package media

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritical marks after NFD decomposition.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CompareString reduces a string for loose comparison: diacritics stripped,
// non-alphanumerics removed, lowercased.
func CompareString(input string) string {
	folded, _, err := transform.String(stripMarks, input)
	if err != nil {
		folded = input
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// LooseCompareStrings reports whether two names match after loose reduction,
// accepting substring matches to tolerate version suffixes and remaster tags.
func LooseCompareStrings(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	ca, cb := CompareString(a), CompareString(b)
	if ca == "" || cb == "" {
		return ca == cb
	}
	if ca == cb {
		return true
	}
	return strings.Contains(ca, cb) || strings.Contains(cb, ca)
}

// StrictCompareStrings requires an exact case-insensitive match.
func StrictCompareStrings(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) ||
		CompareString(a) == CompareString(b)
}

// CompareArtists compares two artist reference lists. With anyMatch a
// single pairwise hit is enough, otherwise every artist of a must be
// present in b.
func CompareArtists(a, b []ItemMapping, anyMatch bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	matches := 0
	for _, left := range a {
		for _, right := range b {
			if LooseCompareStrings(left.Name, right.Name) {
				if anyMatch {
					return true
				}
				matches++
				break
			}
		}
	}
	return matches == len(a)
}

// trackDurationTolerance is the max duration drift for tracks considered
// the same recording when no album context is available.
const trackDurationTolerance = 2

// CompareTrack reports whether two tracks refer to the same recording:
// names loose-match, artist sets intersect, and either the album context
// matches or the durations are within tolerance. ISRC or MusicBrainz id
// equality short-circuits to a definite answer.
func CompareTrack(a, b *Track) bool {
	if a.MusicBrainzID != "" && b.MusicBrainzID != "" {
		return a.MusicBrainzID == b.MusicBrainzID
	}
	for _, left := range a.ISRCs() {
		for _, right := range b.ISRCs() {
			if left == right {
				return true
			}
		}
	}
	if !LooseCompareStrings(a.Name, b.Name) {
		return false
	}
	if !CompareArtists(a.Artists, b.Artists, true) {
		return false
	}
	if a.Version != "" || b.Version != "" {
		if !LooseCompareStrings(a.Version, b.Version) {
			return false
		}
	}
	if a.Album != nil && b.Album != nil && LooseCompareStrings(a.Album.Name, b.Album.Name) {
		return true
	}
	diff := a.Duration - b.Duration
	if diff < 0 {
		diff = -diff
	}
	return diff <= trackDurationTolerance
}

// CompareAlbum reports whether two albums refer to the same release.
func CompareAlbum(a, b *Album) bool {
	if a.MusicBrainzID != "" && b.MusicBrainzID != "" {
		return a.MusicBrainzID == b.MusicBrainzID
	}
	if a.UPC != "" && b.UPC != "" {
		return a.UPC == b.UPC
	}
	if !LooseCompareStrings(a.Name, b.Name) {
		return false
	}
	if a.Version != "" || b.Version != "" {
		if !LooseCompareStrings(a.Version, b.Version) {
			return false
		}
	}
	return CompareArtists(a.Artists, b.Artists, true)
}
