package domain

import (
	"regexp"
	"strings"
)

var shopNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// SanitizeShopDomain normalizes a merchant-supplied store identifier to
// the bare shop name. Scheme, path, and the .myshopify.com suffix are
// stripped before validation.
func SanitizeShopDomain(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	if idx := strings.IndexByte(shop, '/'); idx >= 0 {
		shop = shop[:idx]
	}
	shop = strings.TrimSuffix(shop, ".myshopify.com")

	if shop == "" || !shopNamePattern.MatchString(shop) {
		return "", ErrInvalidShopDomain
	}
	return shop, nil
}
