package views

import (
	"net/netip"
	"strings"
	"unicode/utf8"
)

// Client is the coarse device classification kept with a view record.
type Client struct {
	Device  string
	Browser string
	OS      string
}

var botKeywords = []string{
	"bot", "crawler", "spider", "headless", "wget", "curl",
	"python-requests", "go-http", "java/", "scrapy", "preview",
}

// IsBot reports whether ua looks like a crawler or scripted client.
func IsBot(ua string) bool {
	lower := strings.ToLower(ua)
	for _, kw := range botKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify derives device type, browser and OS from a User-Agent.
func Classify(ua string) Client {
	lower := strings.ToLower(ua)
	out := Client{Device: "desktop", Browser: "Unknown", OS: "Unknown"}

	switch {
	case strings.Contains(lower, "edg/"):
		out.Browser = "Edge"
	case strings.Contains(lower, "opr/"):
		out.Browser = "Opera"
	case strings.Contains(lower, "firefox/"):
		out.Browser = "Firefox"
	case strings.Contains(lower, "chrome/"), strings.Contains(lower, "crios/"):
		out.Browser = "Chrome"
	case strings.Contains(lower, "safari/") && strings.Contains(lower, "version/"):
		out.Browser = "Safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		out.OS = "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		out.OS = "iOS"
	case strings.Contains(lower, "mac os"):
		out.OS = "macOS"
	case strings.Contains(lower, "android"):
		out.OS = "Android"
	case strings.Contains(lower, "linux"):
		out.OS = "Linux"
	}

	switch {
	case strings.Contains(lower, "tablet"), strings.Contains(lower, "ipad"):
		out.Device = "tablet"
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"):
		out.Device = "mobile"
	}
	return out
}

// AnonymizeIP zeroes the host part of an address: the last octet for IPv4
// and the last 80 bits for IPv6. Unparseable input yields "".
func AnonymizeIP(raw string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		b[3] = 0
		return netip.AddrFrom4(b).String()
	}
	b := addr.As16()
	for i := 6; i < len(b); i++ {
		b[i] = 0
	}
	return netip.AddrFrom16(b).String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
