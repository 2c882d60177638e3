//go:build windows

package workstation

import (
	"golang.org/x/sys/windows/registry"
)

func systemID() Info {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE)
	if err != nil {
		return Info{}
	}
	defer key.Close()

	guid, _, err := key.GetStringValue("MachineGuid")
	if err != nil || guid == "" {
		return Info{}
	}
	return Info{ID: normalize(guid), Source: "MachineGuid", Path: `HKLM\SOFTWARE\Microsoft\Cryptography\MachineGuid`}
}
