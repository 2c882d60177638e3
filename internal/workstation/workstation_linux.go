//go:build linux

package workstation

import (
	"os"
	"strings"
)

var linuxIDFiles = []struct{ path, source string }{
	{"/etc/machine-id", "machine-id"},
	{"/var/lib/dbus/machine-id", "dbus-machine-id"},
	{"/sys/class/dmi/id/product_uuid", "product-uuid"},
}

func systemID() Info {
	for _, f := range linuxIDFiles {
		data, err := os.ReadFile(f.path)
		if err != nil {
			continue
		}
		id := strings.TrimSpace(string(data))
		if id == "" || strings.Trim(id, "0") == "" {
			continue
		}
		return Info{ID: normalize(id), Source: f.source, Path: f.path}
	}
	return Info{}
}
