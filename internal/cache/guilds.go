package cache

import "github.com/rickgao/discord-gateway/internal/model"

// CreateGuild applies a guild create. An unknown guild is inserted. A known
// guild is replaced in place only when it was unavailable and the payload is
// available, so existing pointers keep tracking it; any other create for a
// known guild leaves the cache untouched. Returns a copy of the cached guild
// and whether an entry existed.
func (s *State) CreateGuild(g *model.Guild) (*model.Guild, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := g.Clone()
	adoptChannels(incoming)

	cached, ok := s.guilds[g.ID]
	if !ok {
		s.guilds[g.ID] = incoming
		s.order = append(s.order, g.ID)
		return incoming.Clone(), false
	}

	if cached.Unavailable && !incoming.Unavailable {
		*cached = *incoming
	}
	return cached.Clone(), true
}

// UpdateGuild merges a guild update into the cached guild. Returns copies
// of the guild before and after the merge; ok is false for unknown guilds.
func (s *State) UpdateGuild(update *model.Guild) (prev, cur *model.Guild, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.guilds[update.ID]
	if !ok {
		return nil, nil, false
	}
	prev = cached.Clone()
	cached.Merge(update)
	return prev, cached.Clone(), true
}

// DeleteGuild handles a guild delete. During an outage (unavailable) the
// guild is kept and flagged; otherwise it is removed by id. Returns a copy
// of the affected guild.
func (s *State) DeleteGuild(id model.Snowflake, unavailable bool) (*model.Guild, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.guilds[id]
	if !ok {
		return nil, false
	}
	if unavailable {
		cached.Unavailable = true
		return cached.Clone(), true
	}
	delete(s.guilds, id)
	s.removeGuildOrder(id)
	return cached.Clone(), true
}

// SetEmojis replaces a guild's emoji list.
func (s *State) SetEmojis(guildID model.Snowflake, emojis []model.Emoji) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return false
	}
	g.Merge(&model.Guild{Emojis: emojis})
	if g.Emojis == nil {
		g.Emojis = []model.Emoji{}
	}
	return true
}

// AddRole appends a role to a guild, replacing any role with the same id.
func (s *State) AddRole(guildID model.Snowflake, role *model.Role) bool {
	_, ok := s.UpdateRole(guildID, role)
	return ok
}

// UpdateRole removes the role with the same id and adds the new one.
// Returns a copy of the replaced role, if any.
func (s *State) UpdateRole(guildID model.Snowflake, role *model.Role) (*model.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok || role == nil {
		return nil, false
	}
	prev := g.RemoveRole(role.ID)
	g.Roles = append(g.Roles, role.Clone())
	return prev.Clone(), true
}

// DeleteRole removes a role by id and returns a copy of it.
func (s *State) DeleteRole(guildID, roleID model.Snowflake) (*model.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, false
	}
	removed := g.RemoveRole(roleID)
	if removed == nil {
		return nil, false
	}
	return removed.Clone(), true
}
