// Package naming derives object keys for uploaded deployment artifacts.
package naming

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// TimestampLayout is the UTC, second precision layout embedded in keys.
	TimestampLayout = "20060102T150405Z"

	// Extension is appended to every artifact key.
	Extension = ".tar.gz"
)

// ObjectKey returns "<prefix>/<name>-<timestamp>.tar.gz", where name is the
// base name of source and prefix has its surrounding slashes removed. When the
// trimmed prefix is empty the key is just the base name.
//
// Keys produced within the same second for the same source and prefix collide.
func ObjectKey(prefix, source string, now time.Time) string {
	base := SourceName(source) + "-" + now.UTC().Format(TimestampLayout) + Extension

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return prefix + "/" + base
}

// SourceName is the name an artifact takes from its source directory: the
// base name, or the empty string for a filesystem root.
func SourceName(source string) string {
	return strings.Trim(filepath.Base(source), "/"+string(filepath.Separator))
}
