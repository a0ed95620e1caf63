package catalog

import "strings"

// Selection tokens are the opaque identifiers carried in interactive list
// rows. They are derived deterministically from catalog slugs so a replayed
// or hand-typed token always resolves to the same row, and a token minted
// for one business never resolves under another (lookups are scoped by
// business id).
const (
	categoryTokenPrefix = "category_"
	serviceTokenPrefix  = "service_"
)

// CategoryToken returns the selection token for a category.
func CategoryToken(slug string) string {
	return categoryTokenPrefix + slug
}

// ServiceToken returns the selection token for a service.
func ServiceToken(slug string) string {
	return serviceTokenPrefix + slug
}

// ParseCategoryToken extracts the category slug, reporting whether the
// input carried the category prefix.
func ParseCategoryToken(token string) (string, bool) {
	slug, ok := strings.CutPrefix(token, categoryTokenPrefix)
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}

// ParseServiceToken extracts the service slug, reporting whether the input
// carried the service prefix.
func ParseServiceToken(token string) (string, bool) {
	slug, ok := strings.CutPrefix(token, serviceTokenPrefix)
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}
