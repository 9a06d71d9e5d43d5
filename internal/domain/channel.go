package domain

// ChannelID names a real-time channel. A consultation uses its display id.
type ChannelID string

type Channel struct {
	ID    ChannelID
	AppID string
}
