package vaultclient_test

import (
	"slices"
	"testing"
	"time"

	vc "github.com/cerbyonvault/vaultclient"
)

func TestParseTeamIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"1", []int64{1}, false},
		{"1,2, 3", []int64{1, 2, 3}, false},
		{"3 1\t3,1", []int64{3, 1}, false},
		{"1,x", nil, true},
		{"0", nil, true},
		{"-4", nil, true},
	}
	for _, tt := range tests {
		got, err := vc.ParseTeamIDs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTeamIDs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("ParseTeamIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTeamHelpers(t *testing.T) {
	ops := vc.Team{ID: 1, Name: "ops"}
	web := vc.Team{ID: 2, Name: "web"}
	pki := vc.Team{ID: 3, Name: "pki"}

	if got := vc.JoinTeamIDs(vc.TeamIDs([]vc.Team{ops, pki})); got != "1,3" {
		t.Errorf("JoinTeamIDs = %q, want 1,3", got)
	}
	if !vc.HasTeam([]vc.Team{ops, web}, 2) || vc.HasTeam([]vc.Team{ops}, 2) {
		t.Error("HasTeam mismatch")
	}
	if !vc.SharesTeam([]vc.Team{ops, web}, []vc.Team{pki, web}) {
		t.Error("expected shared team web")
	}
	if vc.SharesTeam([]vc.Team{ops}, []vc.Team{pki}) {
		t.Error("expected no shared team")
	}
	if !vc.TeamsEqual([]vc.Team{ops, web}, []vc.Team{web, ops}) {
		t.Error("TeamsEqual should ignore order")
	}
	if vc.TeamsEqual([]vc.Team{ops, web}, []vc.Team{ops, pki}) {
		t.Error("TeamsEqual should compare ids")
	}
}

func TestCertificateWalk(t *testing.T) {
	root := vc.Certificate{ID: 1, Name: "root", Children: []vc.Certificate{
		{ID: 2, Name: "inter", Children: []vc.Certificate{{ID: 3, Name: "leaf"}}},
		{ID: 4, Name: "other"},
	}}

	var visited []int64
	root.Walk(func(c *vc.Certificate, depth int) bool {
		visited = append(visited, c.ID*10+int64(depth))
		return true
	})
	if want := []int64{10, 21, 32, 41}; !slices.Equal(visited, want) {
		t.Errorf("walk order = %v, want %v", visited, want)
	}

	visited = nil
	complete := root.Walk(func(c *vc.Certificate, depth int) bool {
		visited = append(visited, c.ID)
		return c.ID != 3
	})
	if complete || !slices.Equal(visited, []int64{1, 2, 3}) {
		t.Errorf("stopped walk = %v (complete %v)", visited, complete)
	}
}

func TestCertificateExpiresWithin(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c := vc.Certificate{NotAfter: now.Add(10 * 24 * time.Hour)}
	if !c.ExpiresWithin(now, 30*24*time.Hour) {
		t.Error("expected expiry within 30 days")
	}
	if c.ExpiresWithin(now, 7*24*time.Hour) {
		t.Error("did not expect expiry within 7 days")
	}
}

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		user vc.User
		want string
	}{
		{vc.User{FirstName: "Alice", LastName: "Liddell", Username: "alice", Email: "a@example.com"}, "Alice Liddell"},
		{vc.User{FirstName: "Alice", Email: "a@example.com"}, "Alice"},
		{vc.User{Username: "alice", Email: "a@example.com"}, "alice"},
		{vc.User{Email: "a@example.com"}, "a@example.com"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}
