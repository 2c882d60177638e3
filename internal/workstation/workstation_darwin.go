//go:build darwin

package workstation

import (
	"os/exec"
	"strings"
)

func systemID() Info {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return Info{}
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "IOPlatformUUID") {
			continue
		}
		if _, v, ok := strings.Cut(line, "=\""); ok {
			if id := strings.Trim(v, "\" "); id != "" {
				return Info{ID: normalize(id), Source: "IOPlatformUUID", Path: "ioreg -rd1 -c IOPlatformExpertDevice"}
			}
		}
	}
	return Info{}
}
