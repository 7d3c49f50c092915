package platform

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marker is the content of <pid>.proc. The identity stamp lets readers tell
// the announcing process apart from a later process that reused its pid.
type Marker struct {
	Identity `yaml:",inline"`
	Display  string `yaml:"display,omitempty"`
}

// NewMarker stamps a marker for the live process pid.
func NewMarker(pid int, display string) Marker {
	return Marker{Identity: identityOf(pid), Display: strings.TrimSpace(display)}
}

// Stamped reports whether the marker carries any identity to check.
func (m Marker) Stamped() bool {
	return m.Start != "" || m.Exe != ""
}

// Matches reports whether live is the process that wrote m. Unstamped
// markers never match. Every field the marker carries must agree.
func (m Marker) Matches(live Identity) bool {
	if !m.Stamped() {
		return false
	}
	if m.Start != "" && m.Start != live.Start {
		return false
	}
	if m.Exe != "" && m.Exe != live.Exe {
		return false
	}
	return true
}

// WriteMarker writes m to path with owner-only permissions.
func WriteMarker(path string, m Marker) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write marker %s: %w", path, err)
	}
	return nil
}

// ReadMarker reads the marker at path.
func ReadMarker(path string) (Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Marker{}, err
	}
	var m Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Marker{}, fmt.Errorf("decode marker %s: %w", path, err)
	}
	return m, nil
}
