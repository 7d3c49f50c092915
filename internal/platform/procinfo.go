package platform

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// Identity pins a pid to one incarnation of a process. Fields are empty
// when the host cannot tell.
type Identity struct {
	// Start is the kernel start time in clock ticks (linux /proc only).
	Start string `yaml:"start,omitempty"`
	// Exe is the executable name as the process table reports it.
	Exe string `yaml:"exe,omitempty"`
}

func identityOf(pid int) Identity {
	return Identity{Start: startTime(pid), Exe: executable(pid)}
}

// commandLine describes pid for listings: the full argv when /proc has it,
// otherwise the executable name. Empty when neither is available.
func commandLine(pid int) string {
	if pid <= 0 {
		return ""
	}
	if argv := procArgv(pid); len(argv) > 0 {
		return strings.Join(argv, " ")
	}
	return executable(pid)
}

func procArgv(pid int) []string {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return nil
	}
	var argv []string
	for _, part := range bytes.Split(data, []byte{0}) {
		if len(part) > 0 {
			argv = append(argv, string(part))
		}
	}
	return argv
}

func executable(pid int) string {
	p, err := ps.FindProcess(pid)
	if err != nil || p == nil {
		return ""
	}
	return p.Executable()
}

// startTime reads field 22 of /proc/<pid>/stat. The comm field may contain
// spaces and parentheses, so fields are counted from the last ')'.
func startTime(pid int) string {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return ""
	}
	end := bytes.LastIndexByte(data, ')')
	if end < 0 {
		return ""
	}
	// After ')' the first field is field 3 (state).
	fields := strings.Fields(string(data[end+1:]))
	const startField = 22 - 3
	if len(fields) <= startField {
		return ""
	}
	return fields[startField]
}
