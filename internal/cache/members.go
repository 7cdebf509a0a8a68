package cache

import "github.com/rickgao/discord-gateway/internal/model"

// AddMember upserts a member into a guild, keyed by user id.
func (s *State) AddMember(guildID model.Snowflake, m *model.GuildMember) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok || m.UserID() == "" {
		return false
	}
	g.UpsertMember(m.Clone())
	return true
}

// AddMembers upserts a batch of members, as delivered by member chunks.
// Returns how many were stored.
func (s *State) AddMembers(guildID model.Snowflake, members []*model.GuildMember) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return 0
	}
	n := 0
	for _, m := range members {
		if m.UserID() == "" {
			continue
		}
		g.UpsertMember(m.Clone())
		n++
	}
	return n
}

// RemoveMember removes a member by user id and returns a copy of it.
func (s *State) RemoveMember(guildID, userID model.Snowflake) (*model.GuildMember, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, false
	}
	removed := g.RemoveMember(userID)
	if removed == nil {
		return nil, false
	}
	return removed.Clone(), true
}

// UpdateMember field-merges a partial member update. Null fields in the
// update keep the cached value. Returns copies of the member before and
// after the merge.
func (s *State) UpdateMember(guildID model.Snowflake, update *model.GuildMember) (prev, cur *model.GuildMember, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, found := s.guilds[guildID]
	if !found {
		return nil, nil, false
	}
	m := g.Member(update.UserID())
	if m == nil {
		return nil, nil, false
	}
	prev = m.Clone()
	m.Merge(update)
	return prev, m.Clone(), true
}

// ApplyPresence merges the partial user carried by a presence into the
// matching guild member.
func (s *State) ApplyPresence(p *model.Presence) (*model.GuildMember, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[p.GuildID]
	if !ok {
		return nil, false
	}
	m := g.Member(p.User.ID)
	if m == nil {
		return nil, false
	}
	if m.User == nil {
		m.User = p.User.Clone()
	} else {
		m.User.Merge(&p.User)
	}
	return m.Clone(), true
}

// UpdateUser merges a global user update into the current user and into
// every guild membership of that user. Returns a copy of the current user
// before the update (nil when the update is for someone else) and the number
// of memberships touched.
func (s *State) UpdateUser(u *model.User) (*model.User, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *model.User
	if s.me != nil && s.me.ID == u.ID {
		prev = s.me.Clone()
		s.me.Merge(u)
	}

	n := 0
	for _, g := range s.guilds {
		if m := g.Member(u.ID); m != nil && m.User != nil {
			m.User.Merge(u)
			n++
		}
	}
	return prev, n
}
