package client

import (
	"net/url"
	"sort"
	"strings"

	"github.com/velluxe/storefront-core/utils"
)

// Fingerprint key layout:
//
//	p|METHOD|/path|k=v&k=v          public resources
//	s|METHOD|/path|k=v&k=v|cred     auth-sensitive resources
//
// The s| prefix lets a credential change drop every sensitive entry in
// one prefix invalidation without touching public ones.
const (
	publicKeyPrefix    = "p|"
	sensitiveKeyPrefix = "s|"
)

type Fingerprinter struct {
	sensitivePaths []string
}

func NewFingerprinter(sensitivePaths []string) *Fingerprinter {
	return &Fingerprinter{sensitivePaths: sensitivePaths}
}

// Compute derives the stable identity key for a request. Identical
// logical requests under the same credential always produce the same
// key; different credentials on a sensitive path never collide.
func (f *Fingerprinter) Compute(method, path string, params map[string]string, credential string) string {
	normalized := normalizePath(path)

	buf := make([]byte, 0, 128)

	if f.IsSensitive(normalized) {
		buf = append(buf, sensitiveKeyPrefix...)
	} else {
		credential = ""
		buf = append(buf, publicKeyPrefix...)
	}

	buf = append(buf, strings.ToUpper(method)...)
	buf = append(buf, '|')
	buf = append(buf, normalized...)
	buf = append(buf, '|')
	buf = appendParams(buf, params)

	if credential != "" {
		buf = append(buf, '|')
		buf = append(buf, credential...)
	}

	return utils.BytesToString(buf)
}

func (f *Fingerprinter) IsSensitive(path string) bool {
	normalized := normalizePath(path)
	for _, prefix := range f.sensitivePaths {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func appendParams(buf []byte, params map[string]string) []byte {
	if len(params) == 0 {
		return buf
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Keys and values are escaped so a value containing & or = cannot
	// collide with a different parameter set.
	for i, key := range keys {
		if i > 0 {
			buf = append(buf, '&')
		}
		buf = append(buf, url.QueryEscape(key)...)
		buf = append(buf, '=')
		buf = append(buf, url.QueryEscape(params[key])...)
	}
	return buf
}
