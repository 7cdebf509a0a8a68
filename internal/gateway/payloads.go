package gateway

import (
	"encoding/json"

	"github.com/rickgao/discord-gateway/internal/model"
)

// inboundFrame is the envelope of every frame received from the gateway.
type inboundFrame struct {
	Op Opcode          `json:"op"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
	D  json.RawMessage `json:"d"`
}

// outboundFrame is the envelope of every frame sent to the gateway.
type outboundFrame struct {
	Op Opcode `json:"op"`
	D  any    `json:"d"`
}

// Hello is the first payload on every connection.
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify starts a new session.
type Identify struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress"`
	LargeThreshold int                `json:"large_threshold"`
	Shard          [2]int             `json:"shard"`
	Presence       *PresenceUpdate    `json:"presence,omitempty"`
	Intents        int                `json:"intents"`
}

// Resume replays missed events of an existing session.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// PresenceUpdate sets the client's own presence.
type PresenceUpdate struct {
	Since      *int64           `json:"since"`
	Activities []model.Activity `json:"activities"`
	Status     string           `json:"status"`
	AFK        bool             `json:"afk"`
}

// VoiceStateUpdate joins, moves between or leaves voice channels.
type VoiceStateUpdate struct {
	GuildID   model.Snowflake  `json:"guild_id"`
	ChannelID *model.Snowflake `json:"channel_id"`
	SelfMute  bool             `json:"self_mute"`
	SelfDeaf  bool             `json:"self_deaf"`
}

// RequestGuildMembers asks for GUILD_MEMBERS_CHUNK events.
type RequestGuildMembers struct {
	GuildID   model.Snowflake   `json:"guild_id"`
	Query     *string           `json:"query,omitempty"`
	Limit     int               `json:"limit"`
	Presences bool              `json:"presences,omitempty"`
	UserIDs   []model.Snowflake `json:"user_ids,omitempty"`
	Nonce     string            `json:"nonce,omitempty"`
}

// Ready is the payload of the READY dispatch.
type Ready struct {
	V                int              `json:"v"`
	User             model.User       `json:"user"`
	Guilds           []*model.Guild   `json:"guilds"`
	PrivateChannels  []*model.Channel `json:"private_channels"`
	SessionID        string           `json:"session_id"`
	ResumeGatewayURL string           `json:"resume_gateway_url"`
	Shard            []int            `json:"shard,omitempty"`
}

// GuildDelete is sent when a guild is left or becomes unavailable.
type GuildDelete struct {
	ID          model.Snowflake `json:"id"`
	Unavailable bool            `json:"unavailable"`
}

// GuildBan is the payload of ban add/remove.
type GuildBan struct {
	GuildID model.Snowflake `json:"guild_id"`
	User    model.User      `json:"user"`
}

// GuildEmojisUpdate replaces a guild's emojis.
type GuildEmojisUpdate struct {
	GuildID model.Snowflake `json:"guild_id"`
	Emojis  []model.Emoji   `json:"emojis"`
}

// GuildIntegrationsUpdate is sent when integrations change.
type GuildIntegrationsUpdate struct {
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMemberAdd is a member joining a guild.
type GuildMemberAdd struct {
	model.GuildMember
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMemberUpdate carries the changed fields of a member.
type GuildMemberUpdate struct {
	model.GuildMember
	GuildID model.Snowflake `json:"guild_id"`
}

// GuildMemberRemove is a member leaving a guild.
type GuildMemberRemove struct {
	GuildID model.Snowflake `json:"guild_id"`
	User    model.User      `json:"user"`
}

// GuildMembersChunk answers RequestGuildMembers.
type GuildMembersChunk struct {
	GuildID    model.Snowflake      `json:"guild_id"`
	Members    []*model.GuildMember `json:"members"`
	ChunkIndex int                  `json:"chunk_index"`
	ChunkCount int                  `json:"chunk_count"`
	NotFound   []model.Snowflake    `json:"not_found,omitempty"`
	Presences  []model.Presence     `json:"presences,omitempty"`
	Nonce      string               `json:"nonce,omitempty"`
}

// GuildRole is the payload of role create/update.
type GuildRole struct {
	GuildID model.Snowflake `json:"guild_id"`
	Role    *model.Role     `json:"role"`
}

// GuildRoleDelete is the payload of role delete.
type GuildRoleDelete struct {
	GuildID model.Snowflake `json:"guild_id"`
	RoleID  model.Snowflake `json:"role_id"`
}

// ChannelPinsUpdate is sent when a message is pinned or unpinned.
type ChannelPinsUpdate struct {
	GuildID          *model.Snowflake `json:"guild_id,omitempty"`
	ChannelID        model.Snowflake  `json:"channel_id"`
	LastPinTimestamp *string          `json:"last_pin_timestamp,omitempty"`
}

// MessageDelete is a single deleted message.
type MessageDelete struct {
	ID        model.Snowflake  `json:"id"`
	ChannelID model.Snowflake  `json:"channel_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
}

// MessageDeleteBulk is a batch of deleted messages.
type MessageDeleteBulk struct {
	IDs       []model.Snowflake `json:"ids"`
	ChannelID model.Snowflake   `json:"channel_id"`
	GuildID   *model.Snowflake  `json:"guild_id,omitempty"`
}

// MessageReaction is the payload of reaction add and remove.
type MessageReaction struct {
	UserID    model.Snowflake    `json:"user_id"`
	ChannelID model.Snowflake    `json:"channel_id"`
	MessageID model.Snowflake    `json:"message_id"`
	GuildID   *model.Snowflake   `json:"guild_id,omitempty"`
	Member    *model.GuildMember `json:"member,omitempty"`
	Emoji     model.Emoji        `json:"emoji"`
}

// MessageReactionRemoveAll clears every reaction on a message.
type MessageReactionRemoveAll struct {
	ChannelID model.Snowflake  `json:"channel_id"`
	MessageID model.Snowflake  `json:"message_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
}

// TypingStart is sent when a user starts typing.
type TypingStart struct {
	ChannelID model.Snowflake    `json:"channel_id"`
	GuildID   *model.Snowflake   `json:"guild_id,omitempty"`
	UserID    model.Snowflake    `json:"user_id"`
	Timestamp int64              `json:"timestamp"`
	Member    *model.GuildMember `json:"member,omitempty"`
}

// VoiceState is a user's voice connection status.
type VoiceState struct {
	GuildID   *model.Snowflake   `json:"guild_id,omitempty"`
	ChannelID *model.Snowflake   `json:"channel_id"`
	UserID    model.Snowflake    `json:"user_id"`
	Member    *model.GuildMember `json:"member,omitempty"`
	SessionID string             `json:"session_id"`
	Deaf      bool               `json:"deaf"`
	Mute      bool               `json:"mute"`
	SelfDeaf  bool               `json:"self_deaf"`
	SelfMute  bool               `json:"self_mute"`
	Suppress  bool               `json:"suppress"`
}

// VoiceServerUpdate carries a guild's voice endpoint.
type VoiceServerUpdate struct {
	Token    string          `json:"token"`
	GuildID  model.Snowflake `json:"guild_id"`
	Endpoint *string         `json:"endpoint"`
}

// WebhooksUpdate is sent when a channel's webhooks change.
type WebhooksUpdate struct {
	GuildID   model.Snowflake `json:"guild_id"`
	ChannelID model.Snowflake `json:"channel_id"`
}

// InviteCreate is a newly created invite.
type InviteCreate struct {
	ChannelID model.Snowflake  `json:"channel_id"`
	Code      string           `json:"code"`
	CreatedAt string           `json:"created_at"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	Inviter   *model.User      `json:"inviter,omitempty"`
	MaxAge    int              `json:"max_age"`
	MaxUses   int              `json:"max_uses"`
	Temporary bool             `json:"temporary"`
	Uses      int              `json:"uses"`
}

// InviteDelete is a deleted or expired invite.
type InviteDelete struct {
	ChannelID model.Snowflake  `json:"channel_id"`
	GuildID   *model.Snowflake `json:"guild_id,omitempty"`
	Code      string           `json:"code"`
}

// Lifecycle payloads.

// Connecting is published before each dial.
type Connecting struct {
	URL    string
	Resume bool
}

// SocketOpened is published once the websocket handshake completed.
type SocketOpened struct {
	ConnID string
	URL    string
}

// SocketClosed is published when a connection ends.
type SocketClosed struct {
	ConnID string
	Code   int
	Reason string
	Clean  bool
}

// HandshakeReady is published after READY or RESUMED.
type HandshakeReady struct {
	SessionID string
	Resumed   bool
}

// HeartbeatSent is published for every heartbeat written.
type HeartbeatSent struct {
	Sequence *int64
}

// DecodeFailure is published when a dispatch payload cannot be decoded.
type DecodeFailure struct {
	Type string
	Err  error
}

// UnhandledEvent is published for dispatch types without a handler.
type UnhandledEvent struct {
	Type string
}
