package model

import "slices"

// Channel returns the guild channel with the given id.
func (g *Guild) Channel(id Snowflake) *Channel {
	for _, ch := range g.Channels {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// RemoveChannel removes the channel with the given id and returns it.
func (g *Guild) RemoveChannel(id Snowflake) *Channel {
	i := slices.IndexFunc(g.Channels, func(ch *Channel) bool { return ch.ID == id })
	if i < 0 {
		return nil
	}
	ch := g.Channels[i]
	g.Channels = slices.Delete(g.Channels, i, i+1)
	return ch
}

// Member returns the member whose user has the given id.
func (g *Guild) Member(userID Snowflake) *GuildMember {
	for _, m := range g.Members {
		if m.UserID() == userID {
			return m
		}
	}
	return nil
}

// UpsertMember replaces the member with the same user id or appends it.
func (g *Guild) UpsertMember(member *GuildMember) {
	id := member.UserID()
	for i, m := range g.Members {
		if m.UserID() == id {
			g.Members[i] = member
			return
		}
	}
	g.Members = append(g.Members, member)
}

// RemoveMember removes the member with the given user id and returns it.
func (g *Guild) RemoveMember(userID Snowflake) *GuildMember {
	i := slices.IndexFunc(g.Members, func(m *GuildMember) bool { return m.UserID() == userID })
	if i < 0 {
		return nil
	}
	m := g.Members[i]
	g.Members = slices.Delete(g.Members, i, i+1)
	return m
}

// Role returns the role with the given id.
func (g *Guild) Role(id Snowflake) *Role {
	for _, r := range g.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RemoveRole removes the role with the given id and returns it.
func (g *Guild) RemoveRole(id Snowflake) *Role {
	i := slices.IndexFunc(g.Roles, func(r *Role) bool { return r.ID == id })
	if i < 0 {
		return nil
	}
	r := g.Roles[i]
	g.Roles = slices.Delete(g.Roles, i, i+1)
	return r
}
