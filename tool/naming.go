package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// PluginPrefix starts every plugin function name.
const PluginPrefix = "smarter_plugin_"

// PluginFunctionName encodes a plugin id as a function name, zero padded to
// four digits: 7 -> "smarter_plugin_0007".
func PluginFunctionName(id int64) string {
	return fmt.Sprintf("%s%04d", PluginPrefix, id)
}

// DecodePluginID extracts the plugin id from an encoded function name. The
// suffix must be a positive decimal number.
func DecodePluginID(name string) (int64, bool) {
	suffix, ok := strings.CutPrefix(name, PluginPrefix)
	if !ok || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsPluginName reports whether name uses the plugin prefix.
func IsPluginName(name string) bool { return strings.HasPrefix(name, PluginPrefix) }
