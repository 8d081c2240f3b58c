package process

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/boshu2/sessionwatch/internal/types"
)

// psCommandColumn is the index of the first COMMAND field in `ps aux` output
// (USER PID %CPU %MEM VSZ RSS TT STAT STARTED TIME COMMAND).
const psCommandColumn = 10

// noiseMarkers reject shells, the desktop app, editor helpers and our own
// grep before any column parsing.
var noiseMarkers = []string{
	"/bin/zsh", "grep", "Claude.app", "node_modules", "chrome-", "@claude-flow",
}

var (
	resumeFlag = regexp.MustCompile(`(?:^|\s)(?:--resume|-r)(?:=|\s+)([0-9a-fA-F-]{36})`)
	gtRoleEnv  = regexp.MustCompile(`GT_ROLE=(\w+)`)
	gtPrompt   = regexp.MustCompile(`\[GAS TOWN\]\s+(\w+)`)
)

// ParseLine parses one `ps aux` line and reports whether it is a live,
// terminal-attached process of the target CLI. Working directory, start
// time and role are left for the caller to resolve.
func ParseLine(line, target string) (types.ProcessRecord, bool) {
	if target == "" || !strings.Contains(strings.ToLower(line), strings.ToLower(target)) {
		return types.ProcessRecord{}, false
	}
	for _, marker := range noiseMarkers {
		if strings.Contains(line, marker) {
			return types.ProcessRecord{}, false
		}
	}

	fields := strings.Fields(line)
	if len(fields) <= psCommandColumn {
		return types.ProcessRecord{}, false
	}
	name := fields[psCommandColumn]
	if name != target && !strings.HasSuffix(name, "/"+target) {
		return types.ProcessRecord{}, false
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil || pid <= 0 {
		return types.ProcessRecord{}, false
	}
	cpu, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return types.ProcessRecord{}, false
	}

	tty, state := fields[6], fields[7]
	if tty == "?" || tty == "??" || strings.HasPrefix(state, "Z") {
		return types.ProcessRecord{}, false
	}

	cmd := strings.Join(fields[psCommandColumn:], " ")
	return types.ProcessRecord{
		PID:             pid,
		CPUPercent:      cpu,
		TTY:             tty,
		OSState:         state,
		CommandLine:     cmd,
		ResumeSessionID: ResumeID(cmd),
	}, true
}

// ResumeID returns the session id passed to --resume, or "" when the
// command line carries none or the value is not a UUID.
func ResumeID(cmd string) string {
	m := resumeFlag.FindStringSubmatch(cmd)
	if m == nil {
		return ""
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return ""
	}
	return id.String()
}

// ClassifyRole derives the orchestration role of a process from its raw ps
// line, command line and working directory. Explicit markers beat paths.
func ClassifyRole(line, cmd, cwd string) types.Role {
	orchestrated := strings.Contains(cmd, "[GAS TOWN]") ||
		strings.Contains(cmd, "gt boot") ||
		strings.Contains(line, "GT_ROLE=") ||
		types.IsOrchestratedPath(cwd)
	if !orchestrated {
		return types.RoleNone
	}

	if m := gtRoleEnv.FindStringSubmatch(line); m != nil {
		return types.Role(strings.ToLower(m[1]))
	}
	if m := gtPrompt.FindStringSubmatch(cmd); m != nil {
		return types.Role(strings.ToLower(m[1]))
	}
	if role := types.RoleFromPath(cwd); role != types.RoleNone {
		return role
	}
	return types.RoleOrchestrated
}

// ttyDevice maps a ps TTY column to its device path. BSD prints "s012" for
// /dev/ttys012 and Linux prints "pts/3". Unknown forms map to "".
func ttyDevice(tty string) string {
	switch {
	case strings.HasPrefix(tty, "pts/"), strings.HasPrefix(tty, "tty"):
		return "/dev/" + tty
	case len(tty) > 1 && tty[0] == 's' && isDigits(tty[1:]):
		return "/dev/tty" + tty
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// TerminalAlive reports whether the controlling terminal of a process still
// exists as a character device. Terminals in an unrecognised notation are
// assumed alive.
func TerminalAlive(tty string) bool {
	dev := ttyDevice(tty)
	if dev == "" {
		return true
	}
	return isCharDevice(dev)
}

// parseElapsed parses the ps etime format [[dd-]hh:]mm:ss into seconds.
func parseElapsed(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	days := 0
	if i := strings.IndexByte(s, '-'); i >= 0 {
		d, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, false
		}
		days, s = d, s[i+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return days*86400 + total, true
}
