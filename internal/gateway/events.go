package gateway

import (
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rickgao/discord-gateway/internal/model"
)

// Dispatch event names.
const (
	EventReady                   = "ready"
	EventResumed                 = "resumed"
	EventChannelCreate           = "channel create"
	EventChannelUpdate           = "channel update"
	EventChannelDelete           = "channel delete"
	EventChannelPinsUpdate       = "channel pins update"
	EventGuildCreate             = "guild create"
	EventGuildUpdate             = "guild update"
	EventGuildDelete             = "guild delete"
	EventGuildBanAdd             = "guild ban add"
	EventGuildBanRemove          = "guild ban remove"
	EventGuildEmojisUpdate       = "guild emojis update"
	EventGuildIntegrationsUpdate = "guild integrations update"
	EventMemberAdd               = "member add"
	EventMemberRemove            = "member remove"
	EventMemberUpdate            = "member update"
	EventMembersChunk            = "members chunk"
	EventRoleCreate              = "role create"
	EventRoleUpdate              = "role update"
	EventRoleDelete              = "role delete"
	EventMessageCreate           = "message create"
	EventMessageUpdate           = "message update"
	EventMessageDelete           = "message delete"
	EventMessageDeleteBulk       = "message delete bulk"
	EventReactionAdd             = "message reaction add"
	EventReactionRemove          = "message reaction remove"
	EventReactionRemoveAll       = "message reaction remove all"
	EventPresenceUpdate          = "presence update"
	EventTypingStart             = "typing start"
	EventUserUpdate              = "user update"
	EventVoiceStateUpdate        = "voice state update"
	EventVoiceServerUpdate       = "voice server update"
	EventWebhooksUpdate          = "webhooks update"
	EventInviteCreate            = "invite create"
	EventInviteDelete            = "invite delete"
)

// applyFunc decodes a dispatch payload, applies it to the cache and returns
// the event data and, for updates and deletes, the previous state.
type applyFunc func(c *Client, raw json.RawMessage) (data, prev any, err error)

type dispatcher struct {
	name  string
	apply applyFunc // nil: ignored without notification
}

var dispatchers = map[string]dispatcher{
	"READY":                       {EventReady, (*Client).applyReady},
	"RESUMED":                     {EventResumed, (*Client).applyResumed},
	"CHANNEL_CREATE":              {EventChannelCreate, (*Client).applyChannelCreate},
	"CHANNEL_UPDATE":              {EventChannelUpdate, (*Client).applyChannelUpdate},
	"CHANNEL_DELETE":              {EventChannelDelete, (*Client).applyChannelDelete},
	"CHANNEL_PINS_UPDATE":         {EventChannelPinsUpdate, passthrough[ChannelPinsUpdate]},
	"GUILD_CREATE":                {EventGuildCreate, (*Client).applyGuildCreate},
	"GUILD_UPDATE":                {EventGuildUpdate, (*Client).applyGuildUpdate},
	"GUILD_DELETE":                {EventGuildDelete, (*Client).applyGuildDelete},
	"GUILD_BAN_ADD":               {EventGuildBanAdd, passthrough[GuildBan]},
	"GUILD_BAN_REMOVE":            {EventGuildBanRemove, passthrough[GuildBan]},
	"GUILD_EMOJIS_UPDATE":         {EventGuildEmojisUpdate, (*Client).applyEmojisUpdate},
	"GUILD_INTEGRATIONS_UPDATE":   {EventGuildIntegrationsUpdate, passthrough[GuildIntegrationsUpdate]},
	"GUILD_MEMBER_ADD":            {EventMemberAdd, (*Client).applyMemberAdd},
	"GUILD_MEMBER_REMOVE":         {EventMemberRemove, (*Client).applyMemberRemove},
	"GUILD_MEMBER_UPDATE":         {EventMemberUpdate, (*Client).applyMemberUpdate},
	"GUILD_MEMBERS_CHUNK":         {EventMembersChunk, (*Client).applyMembersChunk},
	"GUILD_ROLE_CREATE":           {EventRoleCreate, (*Client).applyRoleCreate},
	"GUILD_ROLE_UPDATE":           {EventRoleUpdate, (*Client).applyRoleUpdate},
	"GUILD_ROLE_DELETE":           {EventRoleDelete, (*Client).applyRoleDelete},
	"MESSAGE_CREATE":              {EventMessageCreate, (*Client).applyMessageCreate},
	"MESSAGE_UPDATE":              {EventMessageUpdate, passthrough[model.Message]},
	"MESSAGE_DELETE":              {EventMessageDelete, passthrough[MessageDelete]},
	"MESSAGE_DELETE_BULK":         {EventMessageDeleteBulk, passthrough[MessageDeleteBulk]},
	"MESSAGE_REACTION_ADD":        {EventReactionAdd, passthrough[MessageReaction]},
	"MESSAGE_REACTION_REMOVE":     {EventReactionRemove, passthrough[MessageReaction]},
	"MESSAGE_REACTION_REMOVE_ALL": {EventReactionRemoveAll, passthrough[MessageReactionRemoveAll]},
	"PRESENCE_UPDATE":             {EventPresenceUpdate, (*Client).applyPresenceUpdate},
	"PRESENCES_REPLACE":           {name: "presences replace"},
	"TYPING_START":                {EventTypingStart, passthrough[TypingStart]},
	"USER_UPDATE":                 {EventUserUpdate, (*Client).applyUserUpdate},
	"VOICE_STATE_UPDATE":          {EventVoiceStateUpdate, passthrough[VoiceState]},
	"VOICE_SERVER_UPDATE":         {EventVoiceServerUpdate, passthrough[VoiceServerUpdate]},
	"WEBHOOKS_UPDATE":             {EventWebhooksUpdate, passthrough[WebhooksUpdate]},
	"INVITE_CREATE":               {EventInviteCreate, passthrough[InviteCreate]},
	"INVITE_DELETE":               {EventInviteDelete, passthrough[InviteDelete]},
}

// handleDispatch applies one op 0 frame and notifies observers.
func (c *Client) handleDispatch(logger *slog.Logger, f inboundFrame) {
	if f.T == nil || *f.T == "" {
		logger.Warn("dispatch without event type")
		return
	}
	typ := *f.T
	var seq int64
	if f.S != nil {
		seq = *f.S
	}

	d, ok := dispatchers[typ]
	if !ok {
		logger.Debug("unhandled event", "event", typ, "seq", seq)
		c.metrics.Unhandled(typ)
		c.publish(Event{Name: LifecycleUnhandledEvent, Sequence: seq, Data: UnhandledEvent{Type: typ}, Raw: f.D})
		return
	}
	if d.apply == nil {
		return
	}

	start := time.Now()
	_, span := c.tracer.Start(c.ctx, "gateway.dispatch", trace.WithAttributes(
		attribute.String("gateway.event", typ),
		attribute.Int64("gateway.seq", seq),
	))
	defer span.End()

	data, prev, err := d.apply(c, f.D)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		logger.Warn("failed to decode event", "event", typ, "seq", seq, "error", err)
		c.metrics.DecodeFailed(typ)
		c.publish(Event{Name: LifecycleDecodeFailed, Sequence: seq, Data: DecodeFailure{Type: typ, Err: err}, Raw: f.D})
		return
	}

	c.publish(Event{Name: d.name, Sequence: seq, Data: data, Previous: prev, Raw: f.D})
	switch d.name {
	case EventReady, EventResumed:
		c.publish(Event{Name: LifecycleHandshakeReady, Data: HandshakeReady{
			SessionID: c.session.Snapshot().SessionID,
			Resumed:   d.name == EventResumed,
		}})
	}
	c.metrics.EventApplied(d.name, time.Since(start))
}

func passthrough[T any](_ *Client, raw json.RawMessage) (any, any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	return &v, nil, nil
}

// ptrOrNil keeps a nil pointer from becoming a non-nil interface.
func ptrOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}

func (c *Client) applyReady(raw json.RawMessage) (any, any, error) {
	var r Ready
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, nil, err
	}
	c.cache.Reset(&r.User, r.Guilds, r.PrivateChannels)
	c.session.setSession(r.SessionID, r.ResumeGatewayURL)

	c.mu.Lock()
	c.hasConnectedBefore = true
	c.retries = 0
	c.status = StatusReady
	c.mu.Unlock()

	c.metrics.SetGuilds(c.cache.GuildCount())
	c.logger.Info("session ready", "session_id", r.SessionID, "user", r.User.Username, "guilds", len(r.Guilds))
	return &r, nil, nil
}

func (c *Client) applyResumed(json.RawMessage) (any, any, error) {
	c.mu.Lock()
	c.retries = 0
	c.status = StatusReady
	c.mu.Unlock()
	c.logger.Info("session resumed")
	return nil, nil, nil
}

func (c *Client) applyChannelCreate(raw json.RawMessage) (any, any, error) {
	var ch model.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, nil, err
	}
	c.cache.UpsertChannel(&ch)
	return &ch, nil, nil
}

func (c *Client) applyChannelUpdate(raw json.RawMessage) (any, any, error) {
	var ch model.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, nil, err
	}
	prev, _ := c.cache.UpsertChannel(&ch)
	return &ch, ptrOrNil(prev), nil
}

func (c *Client) applyChannelDelete(raw json.RawMessage) (any, any, error) {
	var ch model.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, nil, err
	}
	removed, _ := c.cache.DeleteChannel(&ch)
	return &ch, ptrOrNil(removed), nil
}

func (c *Client) applyGuildCreate(raw json.RawMessage) (any, any, error) {
	var g model.Guild
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, nil, err
	}
	cur, _ := c.cache.CreateGuild(&g)
	c.metrics.SetGuilds(c.cache.GuildCount())
	return cur, nil, nil
}

func (c *Client) applyGuildUpdate(raw json.RawMessage) (any, any, error) {
	var g model.Guild
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, nil, err
	}
	prev, cur, ok := c.cache.UpdateGuild(&g)
	if !ok {
		return &g, nil, nil
	}
	return cur, prev, nil
}

func (c *Client) applyGuildDelete(raw json.RawMessage) (any, any, error) {
	var p GuildDelete
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	removed, _ := c.cache.DeleteGuild(p.ID, p.Unavailable)
	c.metrics.SetGuilds(c.cache.GuildCount())
	return &p, ptrOrNil(removed), nil
}

func (c *Client) applyEmojisUpdate(raw json.RawMessage) (any, any, error) {
	var p GuildEmojisUpdate
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	c.cache.SetEmojis(p.GuildID, p.Emojis)
	return &p, nil, nil
}

func (c *Client) applyMemberAdd(raw json.RawMessage) (any, any, error) {
	var p GuildMemberAdd
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	c.cache.AddMember(p.GuildID, &p.GuildMember)
	return &p, nil, nil
}

func (c *Client) applyMemberRemove(raw json.RawMessage) (any, any, error) {
	var p GuildMemberRemove
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	removed, ok := c.cache.RemoveMember(p.GuildID, p.User.ID)
	if ok {
		return removed, nil, nil
	}
	return &p, nil, nil
}

func (c *Client) applyMemberUpdate(raw json.RawMessage) (any, any, error) {
	var p GuildMemberUpdate
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	prev, cur, ok := c.cache.UpdateMember(p.GuildID, &p.GuildMember)
	if !ok {
		return &p, nil, nil
	}
	return cur, prev, nil
}

func (c *Client) applyMembersChunk(raw json.RawMessage) (any, any, error) {
	var p GuildMembersChunk
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	c.cache.AddMembers(p.GuildID, p.Members)
	return &p, nil, nil
}

func (c *Client) applyRoleCreate(raw json.RawMessage) (any, any, error) {
	var p GuildRole
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	if p.Role != nil {
		c.cache.AddRole(p.GuildID, p.Role)
	}
	return &p, nil, nil
}

func (c *Client) applyRoleUpdate(raw json.RawMessage) (any, any, error) {
	var p GuildRole
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	if p.Role == nil {
		return &p, nil, nil
	}
	prev, _ := c.cache.UpdateRole(p.GuildID, p.Role)
	return &p, ptrOrNil(prev), nil
}

func (c *Client) applyRoleDelete(raw json.RawMessage) (any, any, error) {
	var p GuildRoleDelete
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	removed, ok := c.cache.DeleteRole(p.GuildID, p.RoleID)
	if ok {
		return removed, nil, nil
	}
	return &p, nil, nil
}

func (c *Client) applyMessageCreate(raw json.RawMessage) (any, any, error) {
	var m model.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, err
	}
	c.cache.SetLastMessage(m.ChannelID, m.ID)
	return &m, nil, nil
}

func (c *Client) applyPresenceUpdate(raw json.RawMessage) (any, any, error) {
	var p model.Presence
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, err
	}
	c.cache.ApplyPresence(&p)
	return &p, nil, nil
}

func (c *Client) applyUserUpdate(raw json.RawMessage) (any, any, error) {
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, err
	}
	prev, n := c.cache.UpdateUser(&u)
	c.logger.Debug("user updated", "user_id", u.ID, "memberships", n)
	return &u, ptrOrNil(prev), nil
}
