package cache

import (
	"slices"

	"github.com/rickgao/discord-gateway/internal/model"
)

// UpsertChannel applies a channel create or update. Private channels go to
// the DM list, others to their owning guild. The entry with the same id is
// removed first so a channel is never listed twice. Returns a copy of the
// replaced channel; ok is false when the owning guild is unknown.
func (s *State) UpsertChannel(ch *model.Channel) (prev *model.Channel, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.IsPrivate() {
		i := slices.IndexFunc(s.dms, func(c *model.Channel) bool { return c.ID == ch.ID })
		if i >= 0 {
			prev = s.dms[i]
			s.dms = slices.Delete(s.dms, i, i+1)
		}
		s.dms = append(s.dms, ch.Clone())
		return prev.Clone(), true
	}

	g := s.owningGuild(ch)
	if g == nil {
		return nil, false
	}
	prev = g.RemoveChannel(ch.ID)
	g.Channels = append(g.Channels, ch.Clone())
	return prev.Clone(), true
}

// DeleteChannel removes a channel by id from the DM list or its guild.
func (s *State) DeleteChannel(ch *model.Channel) (*model.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.IsPrivate() {
		i := slices.IndexFunc(s.dms, func(c *model.Channel) bool { return c.ID == ch.ID })
		if i < 0 {
			return nil, false
		}
		removed := s.dms[i]
		s.dms = slices.Delete(s.dms, i, i+1)
		return removed.Clone(), true
	}

	g := s.owningGuild(ch)
	if g == nil {
		return nil, false
	}
	removed := g.RemoveChannel(ch.ID)
	if removed == nil {
		return nil, false
	}
	return removed.Clone(), true
}

// SetLastMessage points a channel's last message id at messageID.
// Message bodies are never cached.
func (s *State) SetLastMessage(channelID, messageID model.Snowflake) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.findChannel(channelID)
	if ch == nil {
		return false
	}
	id := messageID
	ch.LastMessageID = &id
	return true
}

func (s *State) owningGuild(ch *model.Channel) *model.Guild {
	if ch.GuildID == nil {
		return nil
	}
	return s.guilds[*ch.GuildID]
}
