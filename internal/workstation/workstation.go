// Package workstation identifies the machine that ingests evidence. The
// identifier is stamped on every ingestion session so that an audit trail
// can show where each file was processed.
package workstation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/wethinkt/go-cdrintel/internal/config"
)

// Source names where an identifier came from.
const (
	SourceGenerated = "cdrintel-generated"
)

// Info describes a workstation identifier.
type Info struct {
	ID       string `json:"workstation_id"`
	Source   string `json:"source"`
	Path     string `json:"path,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

var (
	once      sync.Once
	cached    Info
	cachedErr error
)

// Get returns the workstation identifier. Platform identifiers (machine-id,
// IOPlatformUUID, MachineGuid) are preferred; otherwise an identifier is
// derived once and kept in the cdrintel home directory. The result is
// computed once per process.
func Get() (Info, error) {
	once.Do(func() { cached, cachedErr = resolve() })
	return cached, cachedErr
}

// ID returns just the identifier, or "" when none could be determined.
func ID() string {
	info, err := Get()
	if err != nil {
		return ""
	}
	return info.ID
}

func resolve() (Info, error) {
	host, _ := os.Hostname()
	if info := systemID(); info.ID != "" {
		info.Hostname = host
		return info, nil
	}
	if info := storedID(); info.ID != "" {
		info.Hostname = host
		return info, nil
	}
	info, err := generateAndStore(host)
	if err != nil {
		return Info{}, err
	}
	info.Hostname = host
	return info, nil
}

// idPath is the file holding a generated identifier.
var idPath = func() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workstation_id"), nil
}

func storedID() Info {
	path, err := idPath()
	if err != nil {
		return Info{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return Info{}
	}
	return Info{ID: normalize(id), Source: SourceGenerated, Path: path}
}

func generateAndStore(host string) (Info, error) {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	id := normalize(host + "\x00" + user)

	path, err := idPath()
	if err != nil {
		return Info{}, fmt.Errorf("resolve workstation id path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Info{}, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return Info{}, fmt.Errorf("write workstation id: %w", err)
	}
	return Info{ID: id, Source: SourceGenerated, Path: path}, nil
}

// normalize turns a raw identifier into a lowercase UUID string. Values
// that already parse as a UUID (with or without dashes) keep their bytes;
// anything else is hashed.
func normalize(raw string) string {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	sum := blake3.Sum256([]byte(s))
	u, _ := uuid.FromBytes(sum[:16])
	return u.String()
}
