package types

import "strings"

// Role is the position an agent holds inside a multi-agent orchestrator.
// The zero value means the session is not orchestrated.
type Role string

const (
	RoleNone     Role = ""
	RoleRig      Role = "rig"
	RoleDeacon   Role = "deacon"
	RoleMayor    Role = "mayor"
	RoleWitness  Role = "witness"
	RoleRefinery Role = "refinery"
	RolePolecat  Role = "polecat"

	// RoleOrchestrated marks an orchestrated session whose specific role
	// could not be determined.
	RoleOrchestrated Role = "orchestrated"
)

// orchestratorDirMarkers are path fragments that place a working directory
// inside an orchestrator tree.
var orchestratorDirMarkers = []string{
	"/deacon", "/witness", "/mayor", "/polecats/", "/refinery/", "/rig",
}

// IsOrchestratedPath reports whether cwd lies inside an orchestrator tree.
func IsOrchestratedPath(cwd string) bool {
	if cwd == "" {
		return false
	}
	if strings.HasSuffix(cwd, "/gt") || strings.Contains(cwd, "/gt/") {
		return true
	}
	for _, marker := range orchestratorDirMarkers {
		if strings.Contains(cwd, marker) {
			return true
		}
	}
	return false
}

// RoleFromPath infers a role from a working directory. Rules are checked
// in order and the first match wins.
func RoleFromPath(cwd string) Role {
	switch {
	case cwd == "":
		return RoleNone
	case strings.HasSuffix(cwd, "/rig"):
		return RoleRig
	case strings.Contains(cwd, "/deacon"):
		return RoleDeacon
	case strings.Contains(cwd, "/mayor"):
		return RoleMayor
	case strings.Contains(cwd, "/witness"):
		return RoleWitness
	case strings.Contains(cwd, "/refinery") && !strings.Contains(cwd, "/rig"):
		return RoleRefinery
	case strings.Contains(cwd, "/polecats/"):
		return RolePolecat
	case strings.HasSuffix(cwd, "/gt") || strings.Contains(cwd, "/gt/"):
		return RoleOrchestrated
	}
	return RoleNone
}
