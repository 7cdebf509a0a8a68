package model

// Snowflake is a platform-assigned unique identifier.
type Snowflake string

// ChannelType identifies the kind of channel.
type ChannelType int

const (
	ChannelTypeGuildText          ChannelType = 0
	ChannelTypeDM                 ChannelType = 1
	ChannelTypeGuildVoice         ChannelType = 2
	ChannelTypeGroupDM            ChannelType = 3
	ChannelTypeGuildCategory      ChannelType = 4
	ChannelTypeGuildAnnouncement  ChannelType = 5
	ChannelTypeAnnouncementThread ChannelType = 10
	ChannelTypePublicThread       ChannelType = 11
	ChannelTypePrivateThread      ChannelType = 12
	ChannelTypeGuildStageVoice    ChannelType = 13
	ChannelTypeGuildForum         ChannelType = 15
)

// User is a platform account. Presence payloads carry partial users where
// only ID is guaranteed.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username,omitempty"`
	Discriminator string    `json:"discriminator,omitempty"`
	GlobalName    *string   `json:"global_name,omitempty"`
	Avatar        *string   `json:"avatar,omitempty"`
	Bot           *bool     `json:"bot,omitempty"`
	System        *bool     `json:"system,omitempty"`
	PublicFlags   *int      `json:"public_flags,omitempty"`
}

// GuildMember is a user's membership in a guild.
type GuildMember struct {
	User     *User       `json:"user,omitempty"`
	Nick     *string     `json:"nick,omitempty"`
	Avatar   *string     `json:"avatar,omitempty"`
	Roles    []Snowflake `json:"roles"`
	JoinedAt string      `json:"joined_at,omitempty"`
	Deaf     *bool       `json:"deaf,omitempty"`
	Mute     *bool       `json:"mute,omitempty"`
	Pending  *bool       `json:"pending,omitempty"`
}

// Role is a guild permission role.
type Role struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name"`
	Color       int       `json:"color"`
	Hoist       bool      `json:"hoist"`
	Position    int       `json:"position"`
	Permissions string    `json:"permissions"`
	Managed     bool      `json:"managed"`
	Mentionable bool      `json:"mentionable"`
}

// Emoji is a custom guild emoji.
type Emoji struct {
	ID       *Snowflake  `json:"id"`
	Name     string      `json:"name"`
	Roles    []Snowflake `json:"roles,omitempty"`
	Animated bool        `json:"animated,omitempty"`
}

// Channel is a guild channel or a private (DM / group DM) channel.
type Channel struct {
	ID            Snowflake   `json:"id"`
	Type          ChannelType `json:"type"`
	GuildID       *Snowflake  `json:"guild_id,omitempty"`
	Position      *int        `json:"position,omitempty"`
	Name          *string     `json:"name,omitempty"`
	Topic         *string     `json:"topic,omitempty"`
	NSFW          bool        `json:"nsfw,omitempty"`
	LastMessageID *Snowflake  `json:"last_message_id,omitempty"`
	ParentID      *Snowflake  `json:"parent_id,omitempty"`
	Recipients    []User      `json:"recipients,omitempty"`
}

// IsPrivate reports whether the channel lives outside any guild.
func (c *Channel) IsPrivate() bool {
	return c.Type == ChannelTypeDM || c.Type == ChannelTypeGroupDM
}

// Guild is a server with its channels, members and roles.
type Guild struct {
	ID          Snowflake      `json:"id"`
	Name        string         `json:"name,omitempty"`
	Icon        *string        `json:"icon,omitempty"`
	OwnerID     Snowflake      `json:"owner_id,omitempty"`
	MemberCount int            `json:"member_count,omitempty"`
	Large       bool           `json:"large,omitempty"`
	Unavailable bool           `json:"unavailable,omitempty"`
	Channels    []*Channel     `json:"channels,omitempty"`
	Members     []*GuildMember `json:"members,omitempty"`
	Roles       []*Role        `json:"roles,omitempty"`
	Emojis      []Emoji        `json:"emojis,omitempty"`
}

// Message is a chat message. The cache never retains message bodies.
type Message struct {
	ID              Snowflake    `json:"id"`
	ChannelID       Snowflake    `json:"channel_id"`
	GuildID         *Snowflake   `json:"guild_id,omitempty"`
	Author          *User        `json:"author,omitempty"`
	Member          *GuildMember `json:"member,omitempty"`
	Content         string       `json:"content"`
	Timestamp       string       `json:"timestamp,omitempty"`
	EditedTimestamp *string      `json:"edited_timestamp,omitempty"`
	Mentions        []User       `json:"mentions,omitempty"`
	Pinned          bool         `json:"pinned,omitempty"`
	Type            int          `json:"type,omitempty"`
}

// Activity is a single presence activity.
type Activity struct {
	Name string  `json:"name"`
	Type int     `json:"type"`
	URL  *string `json:"url,omitempty"`
}

// Presence is a user's status within a guild. The embedded user is partial.
type Presence struct {
	User         User              `json:"user"`
	GuildID      Snowflake         `json:"guild_id"`
	Status       string            `json:"status"`
	Activities   []Activity        `json:"activities"`
	ClientStatus map[string]string `json:"client_status,omitempty"`
}
