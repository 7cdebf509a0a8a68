package cache

import (
	"slices"
	"sync"

	"github.com/rickgao/discord-gateway/internal/model"
)

// State is the guild/DM mirror. All methods are safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	guilds map[model.Snowflake]*model.Guild
	order  []model.Snowflake
	dms    []*model.Channel
	me     *model.User
}

// New creates an empty cache.
func New() *State {
	return &State{
		guilds: make(map[model.Snowflake]*model.Guild),
	}
}

// Reset replaces all guild and DM state with a full sync.
func (s *State) Reset(me *model.User, guilds []*model.Guild, dms []*model.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.me = me.Clone()
	s.guilds = make(map[model.Snowflake]*model.Guild, len(guilds))
	s.order = s.order[:0]
	for _, g := range guilds {
		if g == nil {
			continue
		}
		if _, dup := s.guilds[g.ID]; dup {
			continue
		}
		g = g.Clone()
		adoptChannels(g)
		s.guilds[g.ID] = g
		s.order = append(s.order, g.ID)
	}

	s.dms = make([]*model.Channel, 0, len(dms))
	for _, ch := range dms {
		if ch != nil {
			s.dms = append(s.dms, ch.Clone())
		}
	}
}

// Me returns the current user, or nil before the first sync.
func (s *State) Me() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me.Clone()
}

// Guild returns a copy of the guild with the given id.
func (s *State) Guild(id model.Snowflake) (*model.Guild, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Guilds returns copies of all cached guilds in insertion order.
func (s *State) Guilds() []*model.Guild {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Guild, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.guilds[id].Clone())
	}
	return out
}

// GuildCount returns the number of cached guilds.
func (s *State) GuildCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guilds)
}

// DMs returns copies of all cached private channels.
func (s *State) DMs() []*model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Channel, len(s.dms))
	for i, ch := range s.dms {
		out[i] = ch.Clone()
	}
	return out
}

// Channel looks a channel up in the DM list and in every guild.
func (s *State) Channel(id model.Snowflake) (*model.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch := s.findChannel(id)
	if ch == nil {
		return nil, false
	}
	return ch.Clone(), true
}

// Member returns a copy of a guild member.
func (s *State) Member(guildID, userID model.Snowflake) (*model.GuildMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, false
	}
	m := g.Member(userID)
	if m == nil {
		return nil, false
	}
	return m.Clone(), true
}

// Stats summarizes the cache contents.
type Stats struct {
	Guilds      int `json:"guilds"`
	Unavailable int `json:"unavailable"`
	Channels    int `json:"channels"`
	Members     int `json:"members"`
	DMs         int `json:"dms"`
}

// Stats returns counts over the cached entities.
func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Guilds: len(s.guilds), DMs: len(s.dms)}
	for _, g := range s.guilds {
		if g.Unavailable {
			st.Unavailable++
		}
		st.Channels += len(g.Channels)
		st.Members += len(g.Members)
	}
	return st
}

func (s *State) findChannel(id model.Snowflake) *model.Channel {
	for _, ch := range s.dms {
		if ch.ID == id {
			return ch
		}
	}
	for _, g := range s.guilds {
		if ch := g.Channel(id); ch != nil {
			return ch
		}
	}
	return nil
}

func (s *State) removeGuildOrder(id model.Snowflake) {
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// adoptChannels fills in guild ids that guild create payloads leave out.
func adoptChannels(g *model.Guild) {
	for _, ch := range g.Channels {
		if ch.GuildID == nil {
			id := g.ID
			ch.GuildID = &id
		}
	}
}
