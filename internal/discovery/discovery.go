// Package discovery extracts dashboard and per-service URLs out of
// accumulated service-stack log text. It is a pure function: callers
// re-run it over growing log content and merge the result into a slot's
// DiscoveredServices, so later, more-complete matches naturally win.
package discovery

import (
	"regexp"

	"github.com/slotforge/slotforge/internal/model"
)

var (
	dashboardURLRe = regexp.MustCompile(`Now listening on:\s+(https?://\S+)`)
	loginURLRe     = regexp.MustCompile(`Login to the dashboard at\s+(https?://\S+)`)
	resourceURLRe  = regexp.MustCompile(`"([A-Za-z][\w.\-]+)"\s+is listening on\s+(https?://\S+)`)
)

// ParseLogContent scans logContent for the dashboard URL and any
// "<name>" is listening on <url> lines. A login-dashboard URL (Aspire
// 9.0+) takes priority over the plain "Now listening on" one if both are
// present, since it carries the auth token the plain one lacks.
func ParseLogContent(logContent string) model.DiscoveredServices {
	services := model.DiscoveredServices{ServiceURLs: map[string]string{}}

	if m := dashboardURLRe.FindStringSubmatch(logContent); m != nil {
		url := m[1]
		services.DashboardURL = &url
	}
	if m := loginURLRe.FindStringSubmatch(logContent); m != nil {
		url := m[1]
		services.DashboardURL = &url
	}

	for _, m := range resourceURLRe.FindAllStringSubmatch(logContent, -1) {
		services.ServiceURLs[m[1]] = m[2]
	}

	return services
}
