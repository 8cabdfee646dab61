package vaultclient

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTeamIDs parses a comma or space separated list of team IDs into a slice.
// Duplicates are removed, order of first appearance is kept.
func ParseTeamIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := make(map[int64]bool)
	result := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid team id %q", f)
		}
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result, nil
}

// JoinTeamIDs joins team IDs into a comma separated string
func JoinTeamIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// TeamIDs returns the IDs of the given teams
func TeamIDs(teams []Team) []int64 {
	ids := make([]int64, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return ids
}

// HasTeam checks if a team with the given ID is present in the list
func HasTeam(teams []Team, id int64) bool {
	for _, t := range teams {
		if t.ID == id {
			return true
		}
	}
	return false
}

// SharesTeam reports whether the two team lists have at least one team in common.
// The server grants access to certificates and keys through shared teams.
func SharesTeam(a, b []Team) bool {
	set := make(map[int64]bool, len(a))
	for _, t := range a {
		set[t.ID] = true
	}
	for _, t := range b {
		if set[t.ID] {
			return true
		}
	}
	return false
}

// TeamsEqual checks if two team lists contain the same team IDs (order-independent)
func TeamsEqual(a, b []Team) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]bool, len(a))
	for _, t := range a {
		set[t.ID] = true
	}
	for _, t := range b {
		if !set[t.ID] {
			return false
		}
	}
	return true
}
