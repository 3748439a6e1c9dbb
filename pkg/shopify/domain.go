package shopify

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidDomain = errors.New("invalid shop domain")

	hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// NormalizeDomain 统一店铺域名
// "https://Demo.myshopify.com/admin" -> "demo.myshopify.com"，"demo" -> "demo.myshopify.com"
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if d == "" {
		return "", ErrInvalidDomain
	}
	if !strings.Contains(d, ".") {
		d += ".myshopify.com"
	}
	if !hostnamePattern.MatchString(d) {
		return "", ErrInvalidDomain
	}
	return d, nil
}
