// Package netutil holds URL helpers for endpoint embed templates.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var ErrInvalidEmbedPrefix = errors.New("invalid embed prefix")

// ExtractDomain extracts the effective top-level-domain-plus-one (eTLD+1)
// from a host, host:port or URL string.
//
//	"https://www.youtube-nocookie.com/embed/" -> "youtube-nocookie.com"
//	"piped.kavin.rocks"                       -> "kavin.rocks"
//	"127.0.0.1:8080"                          -> "127.0.0.1"
//	"[::1]:80"                                -> "::1"
func ExtractDomain(target string) string {
	if strings.Contains(target, "://") || strings.HasPrefix(target, "//") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			target = u.Host
		}
	}

	host := target
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	// Errors for IPs, localhost and bare TLDs; those are returned as-is.
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

// NormalizeEmbedPrefix validates an embed template prefix and guarantees a
// trailing slash so that the video reference can be appended directly.
// An empty prefix is returned unchanged (virtual endpoint).
func NormalizeEmbedPrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", nil
	}
	u, err := url.Parse(prefix)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidEmbedPrefix, prefix, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidEmbedPrefix, prefix)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w %q: missing host", ErrInvalidEmbedPrefix, prefix)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%w %q: query and fragment are not allowed", ErrInvalidEmbedPrefix, prefix)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix, nil
}
