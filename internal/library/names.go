// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValidateName checks that name is a plain, visible file name and returns
// its NFC form. Percent-encoded traversal is decoded before checking.
func ValidateName(name string) (string, error) {
	decoded := name
	for i := 0; i < 3; i++ {
		d, err := url.PathUnescape(decoded)
		if err != nil || d == decoded {
			break
		}
		decoded = d
	}
	normalized := norm.NFC.String(decoded)

	switch {
	case normalized == "", normalized == ".", normalized == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(normalized, "/\\\x00"):
		return "", fmt.Errorf("%w: %q contains a separator", ErrInvalidName, name)
	case strings.HasPrefix(normalized, "."):
		// hidden files include in-flight partial outputs
		return "", fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	case decoded != name && strings.Contains(decoded, ".."):
		return "", fmt.Errorf("%w: %q is encoded traversal", ErrInvalidName, name)
	}
	return normalized, nil
}

// RenditionDir is the directory holding the ladder of the named asset.
func RenditionDir(name string) string {
	base := strings.TrimSuffix(name, extOf(name))
	return base + "_hls"
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
