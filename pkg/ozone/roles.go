// pkg/ozone/roles.go

package ozone

import (
	"regexp"
	"sort"
	"strings"
)

// RoleState is the consensus-group membership extracted from CLI output.
// Followers maps hostname to node ID; the ID is empty when the output
// format did not carry one.
type RoleState struct {
	Leader    string
	Followers map[string]string
}

// LeaderKnown reports whether exactly one leader was identified.
func (s RoleState) LeaderKnown() bool { return s.Leader != "" }

// IsFollower reports whether host appeared as a follower.
func (s RoleState) IsFollower(host string) bool {
	_, ok := s.Followers[host]
	return ok
}

// NodeID returns the consensus node ID recorded for host, or "".
func (s RoleState) NodeID(host string) string { return s.Followers[host] }

// FollowerHosts returns follower hostnames in stable order.
func (s RoleState) FollowerHosts() []string {
	hosts := make([]string, 0, len(s.Followers))
	for h := range s.Followers {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// The roles output is not a stable API; different releases print the same
// facts in different shapes. Each pattern below matches one observed shape
// and the parser tries them per line, most specific first.
var (
	// om2 : LEADER (host2.example.com)
	leaderNodeRe = regexp.MustCompile(`(\w+)\s*:\s*LEADER\s*\(([^)\s]+)\)`)
	// LEADER: host2.example.com
	leaderPlainRe = regexp.MustCompile(`LEADER:\s*(\S+)`)

	// om1 : FOLLOWER (host1.example.com)
	followerNodeRe = regexp.MustCompile(`(\w+)\s*:\s*FOLLOWER\s*\(([^)\s]+)\)`)
	// FOLLOWER: host1.example.com (om1)
	followerHostIDRe = regexp.MustCompile(`FOLLOWER:\s*(\S+)\s*\((\w+)\)`)
	// om1 host1.example.com FOLLOWER
	followerColumnsRe = regexp.MustCompile(`^\s*(\w+)\s+(\S+)\s+FOLLOWER\b`)
	// om2 host2.example.com LEADER
	leaderColumnsRe = regexp.MustCompile(`^\s*\w+\s+(\S+)\s+LEADER\b`)
	// FOLLOWER: host1.example.com
	followerPlainRe = regexp.MustCompile(`FOLLOWER:\s*(\S+)`)
)

// ParseRoles extracts leader and follower membership from `ozone admin om
// roles` output in any of its known formats. Conflicting leader claims
// leave Leader empty rather than picking one arbitrarily; the caller
// treats that as "leader unknown".
func ParseRoles(text string) RoleState {
	state := RoleState{Followers: map[string]string{}}
	leaders := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		if m := leaderNodeRe.FindStringSubmatch(line); m != nil {
			leaders[strings.TrimSuffix(m[2], ",")] = true
			continue
		}
		if m := followerNodeRe.FindStringSubmatch(line); m != nil {
			state.Followers[strings.TrimSuffix(m[2], ",")] = m[1]
			continue
		}
		if m := followerHostIDRe.FindStringSubmatch(line); m != nil {
			state.Followers[strings.TrimSuffix(m[1], ",")] = m[2]
			continue
		}
		if m := followerColumnsRe.FindStringSubmatch(line); m != nil {
			state.Followers[strings.TrimSuffix(m[2], ",")] = m[1]
			continue
		}
		if m := followerPlainRe.FindStringSubmatch(line); m != nil {
			state.Followers[strings.TrimSuffix(m[1], ",")] = ""
			continue
		}
		if m := leaderColumnsRe.FindStringSubmatch(line); m != nil {
			leaders[strings.TrimSuffix(m[1], ",")] = true
			continue
		}
		if m := leaderPlainRe.FindStringSubmatch(line); m != nil {
			leaders[strings.TrimSuffix(m[1], ",")] = true
		}
	}

	if len(leaders) == 1 {
		for h := range leaders {
			state.Leader = h
		}
	}
	return state
}
