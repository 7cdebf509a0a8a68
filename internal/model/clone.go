package model

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		GlobalName:    clonePtr(u.GlobalName),
		Avatar:        clonePtr(u.Avatar),
		Bot:           clonePtr(u.Bot),
		System:        clonePtr(u.System),
		PublicFlags:   clonePtr(u.PublicFlags),
	}
}

// Merge copies every field present in update onto u. The ID is never changed.
func (u *User) Merge(update *User) {
	if update == nil {
		return
	}
	if update.Username != "" {
		u.Username = update.Username
	}
	if update.Discriminator != "" {
		u.Discriminator = update.Discriminator
	}
	if update.GlobalName != nil {
		u.GlobalName = clonePtr(update.GlobalName)
	}
	if update.Avatar != nil {
		u.Avatar = clonePtr(update.Avatar)
	}
	if update.Bot != nil {
		u.Bot = clonePtr(update.Bot)
	}
	if update.System != nil {
		u.System = clonePtr(update.System)
	}
	if update.PublicFlags != nil {
		u.PublicFlags = clonePtr(update.PublicFlags)
	}
}

// UserID returns the member's user id, or "" when the user is missing.
func (m *GuildMember) UserID() Snowflake {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.ID
}

// Clone returns a deep copy of the member.
func (m *GuildMember) Clone() *GuildMember {
	if m == nil {
		return nil
	}
	return &GuildMember{
		User:     m.User.Clone(),
		Nick:     clonePtr(m.Nick),
		Avatar:   clonePtr(m.Avatar),
		Roles:    cloneSlice(m.Roles),
		JoinedAt: m.JoinedAt,
		Deaf:     clonePtr(m.Deaf),
		Mute:     clonePtr(m.Mute),
		Pending:  clonePtr(m.Pending),
	}
}

// Merge applies a partial member update: null or absent fields keep their
// cached value. The embedded user is merged, not replaced.
func (m *GuildMember) Merge(update *GuildMember) {
	if update == nil {
		return
	}
	if update.User != nil {
		if m.User == nil {
			m.User = update.User.Clone()
		} else {
			m.User.Merge(update.User)
		}
	}
	if update.Nick != nil {
		m.Nick = clonePtr(update.Nick)
	}
	if update.Avatar != nil {
		m.Avatar = clonePtr(update.Avatar)
	}
	if update.Roles != nil {
		m.Roles = cloneSlice(update.Roles)
	}
	if update.JoinedAt != "" {
		m.JoinedAt = update.JoinedAt
	}
	if update.Deaf != nil {
		m.Deaf = clonePtr(update.Deaf)
	}
	if update.Mute != nil {
		m.Mute = clonePtr(update.Mute)
	}
	if update.Pending != nil {
		m.Pending = clonePtr(update.Pending)
	}
}

// Clone returns a copy of the role.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	out.GuildID = clonePtr(c.GuildID)
	out.Position = clonePtr(c.Position)
	out.Name = clonePtr(c.Name)
	out.Topic = clonePtr(c.Topic)
	out.LastMessageID = clonePtr(c.LastMessageID)
	out.ParentID = clonePtr(c.ParentID)
	if c.Recipients != nil {
		out.Recipients = make([]User, len(c.Recipients))
		for i := range c.Recipients {
			out.Recipients[i] = *c.Recipients[i].Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the guild including its collections.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	out := *g
	out.Icon = clonePtr(g.Icon)
	if g.Channels != nil {
		out.Channels = make([]*Channel, len(g.Channels))
		for i, ch := range g.Channels {
			out.Channels[i] = ch.Clone()
		}
	}
	if g.Members != nil {
		out.Members = make([]*GuildMember, len(g.Members))
		for i, m := range g.Members {
			out.Members[i] = m.Clone()
		}
	}
	if g.Roles != nil {
		out.Roles = make([]*Role, len(g.Roles))
		for i, r := range g.Roles {
			out.Roles[i] = r.Clone()
		}
	}
	if g.Emojis != nil {
		out.Emojis = make([]Emoji, len(g.Emojis))
		for i, e := range g.Emojis {
			e.ID = clonePtr(e.ID)
			e.Roles = cloneSlice(e.Roles)
			out.Emojis[i] = e
		}
	}
	return &out
}

// Merge applies a guild update in place. Channels and members are only sent
// on guild create, so they are left untouched; roles and emojis are replaced
// when present.
func (g *Guild) Merge(update *Guild) {
	if update == nil {
		return
	}
	if update.Name != "" {
		g.Name = update.Name
	}
	if update.Icon != nil {
		g.Icon = clonePtr(update.Icon)
	}
	if update.OwnerID != "" {
		g.OwnerID = update.OwnerID
	}
	if update.MemberCount > 0 {
		g.MemberCount = update.MemberCount
	}
	if update.Large {
		g.Large = true
	}
	if update.Roles != nil {
		g.Roles = make([]*Role, len(update.Roles))
		for i, r := range update.Roles {
			g.Roles[i] = r.Clone()
		}
	}
	if update.Emojis != nil {
		g.Emojis = cloneSlice(update.Emojis)
	}
}
