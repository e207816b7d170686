package channel

import "strings"

// AllowList controls which responders may resolve requests through an
// interactive channel. An empty or nil AllowList denies everyone; callers
// that want an open channel do not install one.
type AllowList struct {
	users  map[string]struct{}
	groups map[string]struct{}
}

// NewAllowList creates an AllowList with O(1) lookups. Keys are trimmed and
// lowercased at construction time so that IsAllowed can use direct map lookups.
func NewAllowList(users, groups []string) *AllowList {
	a := &AllowList{
		users:  make(map[string]struct{}, len(users)),
		groups: make(map[string]struct{}, len(groups)),
	}
	for _, u := range users {
		a.users[normalize(u)] = struct{}{}
	}
	for _, g := range groups {
		a.groups[normalize(g)] = struct{}{}
	}
	return a
}

// IsAllowed reports whether the responder or the group (team, channel)
// the interaction came from is permitted.
func (a *AllowList) IsAllowed(userID, groupID string) bool {
	if a == nil || (len(a.users) == 0 && len(a.groups) == 0) {
		return false
	}

	if _, ok := a.users[normalize(userID)]; ok {
		return true
	}
	if _, ok := a.groups[normalize(groupID)]; ok && groupID != "" {
		return true
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
