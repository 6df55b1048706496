package lookup

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// NormalizeHandle turns "@name", "t.me/name/123" or "https://telegram.me/name"
// into "name".
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")

	candidate := h
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	if u, err := url.Parse(candidate); err == nil {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == "t.me" || host == "telegram.me" {
			path := strings.TrimPrefix(u.Path, "/")
			if path != "" {
				h = strings.SplitN(path, "/", 2)[0]
			}
		}
	}
	h = strings.TrimPrefix(h, "@")

	if !handleRe.MatchString(h) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, raw)
	}
	return h, nil
}

// DefaultAvatar is the initials placeholder used when a profile has no photo.
func DefaultAvatar(handle string) string {
	return "https://api.dicebear.com/8.x/initials/svg?seed=" + url.QueryEscape(handle)
}
