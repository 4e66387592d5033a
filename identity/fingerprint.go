package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// ListingFingerprint derives a stable synthetic id for a listing whose URL
// carries no recognizable numeric item id. The URL is normalized first so the
// same listing fetched with different tracking parameters hashes identically.
func ListingFingerprint(rawURL, title string) string {
	input := fmt.Sprintf("%s|%s", NormalizeListingURL(rawURL), normalizeTitle(title))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeListingURL lowercases the host, drops the query string and fragment,
// and trims a trailing slash. Tracking parameters vary per fetch; the path does
// not.
func NormalizeListingURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	path := strings.TrimSuffix(u.Path, "/")
	return strings.ToLower(u.Host + path)
}

func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	return multiSpaceRegex.ReplaceAllString(title, " ")
}
