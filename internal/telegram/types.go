package telegram

// Bot API wire types, trimmed to the fields the bot reads.

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID     int64          `json:"message_id"`
	From          *User          `json:"from"`
	SenderChat    *Chat          `json:"sender_chat"`
	Chat          Chat           `json:"chat"`
	Text          string         `json:"text"`
	Caption       string         `json:"caption"`
	ReplyTo       *Message       `json:"reply_to_message"`
	ForwardOrigin *ForwardOrigin `json:"forward_origin"`

	Photo     []PhotoSize `json:"photo"`
	Video     *Media      `json:"video"`
	Document  *Document   `json:"document"`
	Audio     *Media      `json:"audio"`
	Voice     *Media      `json:"voice"`
	VideoNote *Media      `json:"video_note"`
	Sticker   *Media      `json:"sticker"`
	Animation *Media      `json:"animation"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type ForwardOrigin struct {
	Type string `json:"type"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
}

type Media struct {
	FileID string `json:"file_id"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// IsChannelPost reports whether the message is a channel post landing in a
// linked discussion group, either directly or as an automatic forward.
func (m *Message) IsChannelPost() bool {
	if m.SenderChat != nil && m.SenderChat.Type == "channel" {
		return true
	}
	if m.ForwardOrigin != nil && m.ForwardOrigin.Type == "channel" {
		return true
	}
	return false
}

// PostText picks the commentable text of a post: body, media caption or
// document name, in that order.
func (m *Message) PostText() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Caption != "" {
		return m.Caption
	}
	if m.Document != nil && m.Document.FileName != "" {
		return m.Document.FileName
	}
	return ""
}

// HasMedia reports whether the message carries any media attachment.
func (m *Message) HasMedia() bool {
	return len(m.Photo) > 0 || m.Video != nil || m.Document != nil ||
		m.Audio != nil || m.Voice != nil || m.VideoNote != nil ||
		m.Sticker != nil || m.Animation != nil
}
