package media

import (
	"fmt"
	"strings"
)

// CreateURI builds the canonical item uri: {media_type}://{provider}/{item_id}.
func CreateURI(mediaType MediaType, provider, itemID string) string {
	return fmt.Sprintf("%s://%s/%s", mediaType, provider, itemID)
}

// ParseURI splits an item uri back into its parts.
func ParseURI(uri string) (mediaType MediaType, provider, itemID string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", "", "", fmt.Errorf("%w: malformed uri %q", ErrInvalidData, uri)
	}
	provider, itemID, ok = strings.Cut(rest, "/")
	if !ok || provider == "" || itemID == "" {
		return "", "", "", fmt.Errorf("%w: malformed uri %q", ErrInvalidData, uri)
	}
	return MediaType(scheme), provider, itemID, nil
}

// leading articles stripped by CreateSortName, longest first
var sortArticles = []string{"the ", "los ", "las ", "les ", "die ", "der ", "das ", "el ", "la ", "le ", "an ", "a "}

// CreateSortName derives the sort key for a display name: lowercased with
// any leading article stripped. Idempotent.
func CreateSortName(name string) string {
	sortName := strings.ToLower(strings.TrimSpace(name))
	for _, article := range sortArticles {
		if strings.HasPrefix(sortName, article) {
			sortName = sortName[len(article):]
			break
		}
	}
	return strings.TrimSpace(sortName)
}
