package cache

import (
	"net/url"
	"strings"

	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/utils"
)

const publicHost = "github.com"

// IsRestrictedHost reports whether serverURL points to a GitHub Enterprise
// Server, which does not support the fallback cache. Empty or malformed urls
// are treated as the public host.
func IsRestrictedHost(serverURL string) bool {
	if !utils.IsValidURL(serverURL) {
		serverURL = config.DefaultServerURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	return !strings.EqualFold(u.Hostname(), publicHost)
}
