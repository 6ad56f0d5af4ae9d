package activity

import (
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// URL is a parsed, normalized URL. The zero value is invalid and matches
// nothing.
type URL struct {
	spec  string
	valid bool
}

// ParseURL normalizes raw. Unparseable or relative input yields an invalid
// URL instead of an error.
func ParseURL(raw string) URL {
	spec, ok := NormalizeURL(raw)
	if !ok {
		return URL{}
	}
	return URL{spec: spec, valid: true}
}

func (u URL) IsValid() bool {
	return u.valid
}

// String returns the normalized form, or "" for an invalid URL.
func (u URL) String() string {
	return u.spec
}

// NormalizeURL lowercases the scheme and host, drops default ports, and
// gives hierarchical URLs a root path. ok is false when raw is not an
// absolute URL.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)

	if u.Opaque != "" {
		return u.String(), true
	}

	_, hierarchical := defaultPorts[u.Scheme]
	if hierarchical && u.Host == "" {
		return "", false
	}
	if u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
			host += ":" + port
		}
		u.Host = host
	}
	if hierarchical && u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}
