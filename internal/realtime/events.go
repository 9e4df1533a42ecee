package realtime

import "time"

// Event type discriminators on the realtime wire.
const (
	EventConversationItemCreate = "conversation.item.create"
	EventResponseCreate         = "response.create"

	EventResponseCreated         = "response.created"
	EventOutputTextDelta         = "response.output_text.delta"
	EventResponseCompleted       = "response.completed"
	EventResponseError           = "response.error"
	EventConversationItemCreated = "conversation.item.created"
)

// Content part types within a conversation item.
const (
	PartInputText  = "input_text"
	PartInputImage = "input_image"
)

// ContentPart is one part of a conversation item's content.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ConversationItem is the inner "item" object of a conversation.item.create.
type ConversationItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// OutboundEvent is a client-to-model event. EventID is assigned by the
// Coordinator at send time, not at creation time; SentAt is for local
// display only. Never mutated after Send.
type OutboundEvent struct {
	EventID string            `json:"event_id,omitempty"`
	Type    string            `json:"type"`
	Item    *ConversationItem `json:"item,omitempty"`

	SentAt time.Time `json:"-"`
}

// NewUserTextEvent builds a conversation.item.create carrying one user text
// part.
func NewUserTextEvent(text string) OutboundEvent {
	return OutboundEvent{
		Type: EventConversationItemCreate,
		Item: &ConversationItem{
			Type: "message",
			Role: "user",
			Content: []ContentPart{
				{Type: PartInputText, Text: text},
			},
		},
	}
}

// NewSnapshotEvent builds a conversation.item.create combining a text
// summary of a map capture with the image itself.
func NewSnapshotEvent(summary, imageURL string) OutboundEvent {
	return OutboundEvent{
		Type: EventConversationItemCreate,
		Item: &ConversationItem{
			Type: "message",
			Role: "user",
			Content: []ContentPart{
				{Type: PartInputText, Text: summary},
				{Type: PartInputImage, ImageURL: imageURL},
			},
		},
	}
}

// NewResponseCreate builds a response.create with no payload.
func NewResponseCreate() OutboundEvent {
	return OutboundEvent{Type: EventResponseCreate}
}

// InboundEvent is a model-to-client event, discriminated by Type. Unknown
// types are ignored by the reconciler.
type InboundEvent struct {
	EventID string        `json:"event_id,omitempty"`
	Type    string        `json:"type"`
	Delta   string        `json:"delta,omitempty"`
	Item    *InboundItem  `json:"item,omitempty"`
	Error   *InboundError `json:"error,omitempty"`
}

// InboundItem is the item payload of conversation.item.created.
type InboundItem struct {
	ID      string           `json:"id,omitempty"`
	Type    string           `json:"type,omitempty"`
	Role    string           `json:"role,omitempty"`
	Content []InboundContent `json:"content,omitempty"`
}

// InboundContent is one content part of an inbound item. User speech arrives
// as a transcript rather than text.
type InboundContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// TextValue returns whichever of the text fields is populated.
func (c InboundContent) TextValue() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Transcript
}

// InboundError is the error payload of response.error.
type InboundError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
