// Package updates models remote updates and turns a fetch-since-offset call into
// a continuous stream of them.
package updates

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/tidwall/gjson"
)

// Kind names the payload variant of an update, using the remote API's field names.
type Kind string

const (
	KindMessage            Kind = "message"
	KindEditedMessage      Kind = "edited_message"
	KindChannelPost        Kind = "channel_post"
	KindEditedChannelPost  Kind = "edited_channel_post"
	KindBusinessConnection Kind = "business_connection"
	KindBusinessMessage    Kind = "business_message"
	KindMessageReaction    Kind = "message_reaction"
	KindInlineQuery        Kind = "inline_query"
	KindChosenInlineResult Kind = "chosen_inline_result"
	KindCallbackQuery      Kind = "callback_query"
	KindShippingQuery      Kind = "shipping_query"
	KindPreCheckoutQuery   Kind = "pre_checkout_query"
	KindPoll               Kind = "poll"
	KindPollAnswer         Kind = "poll_answer"
	KindMyChatMember       Kind = "my_chat_member"
	KindChatMember         Kind = "chat_member"
	KindChatJoinRequest    Kind = "chat_join_request"
	KindChatBoost          Kind = "chat_boost"
	KindRemovedChatBoost   Kind = "removed_chat_boost"

	// KindUnknown is a well-formed update carrying a payload this build does not know.
	KindUnknown Kind = "unknown"
	// KindError marks an update whose payload could not be decoded.
	KindError Kind = "error"
)

// knownKinds is ordered by how often each kind shows up in practice.
var knownKinds = []Kind{
	KindMessage,
	KindCallbackQuery,
	KindEditedMessage,
	KindInlineQuery,
	KindChosenInlineResult,
	KindChannelPost,
	KindEditedChannelPost,
	KindMyChatMember,
	KindChatMember,
	KindChatJoinRequest,
	KindMessageReaction,
	KindPoll,
	KindPollAnswer,
	KindShippingQuery,
	KindPreCheckoutQuery,
	KindBusinessConnection,
	KindBusinessMessage,
	KindChatBoost,
	KindRemovedChatBoost,
}

// KnownKinds returns every payload kind that can be requested from the remote.
func KnownKinds() []Kind {
	out := make([]Kind, len(knownKinds))
	copy(out, knownKinds)
	return out
}

// ParseKind resolves a remote field name to a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range knownKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown update kind %q", name)
}

// Update is one remote event. It is immutable once received.
type Update struct {
	ID      int64
	Kind    Kind
	Payload *models.Update
	// Raw holds the undecoded JSON object as received.
	Raw []byte
	// Err is set only for KindError updates.
	Err error
}

// IsMalformed reports whether the update is an undecodable marker.
func (u Update) IsMalformed() bool {
	return u.Kind == KindError
}

// ChatID returns the chat the update belongs to, when it has one.
func (u Update) ChatID() (int64, bool) {
	if u.Payload == nil {
		return 0, false
	}
	switch {
	case u.Payload.Message != nil:
		return u.Payload.Message.Chat.ID, true
	case u.Payload.EditedMessage != nil:
		return u.Payload.EditedMessage.Chat.ID, true
	case u.Payload.ChannelPost != nil:
		return u.Payload.ChannelPost.Chat.ID, true
	case u.Payload.EditedChannelPost != nil:
		return u.Payload.EditedChannelPost.Chat.ID, true
	case u.Payload.CallbackQuery != nil && u.Payload.CallbackQuery.Message.Message != nil:
		return u.Payload.CallbackQuery.Message.Message.Chat.ID, true
	default:
		return 0, false
	}
}

// ErrMissingID marks an update object without update_id. Such an object can
// not be acknowledged through the offset, so Polling reports it as a
// transport error instead of dispatching it.
var ErrMissingID = errors.New("update_id is missing")

// Decode parses one update object. Payloads that cannot be decoded are
// returned as KindError updates rather than failing, so one bad update does
// not poison its batch.
func Decode(raw []byte) Update {
	upd := Update{Raw: raw}

	id := gjson.GetBytes(raw, "update_id")
	if !id.Exists() {
		upd.Kind = KindError
		upd.Err = ErrMissingID
		return upd
	}
	upd.ID = id.Int()

	var payload models.Update
	if err := json.Unmarshal(raw, &payload); err != nil {
		upd.Kind = KindError
		upd.Err = fmt.Errorf("decode update %d: %w", upd.ID, err)
		return upd
	}
	upd.Payload = &payload
	upd.Kind = kindOf(raw)
	return upd
}

// FromPayload builds an Update from an already decoded payload.
func FromPayload(payload *models.Update) (Update, error) {
	if payload == nil {
		return Update{}, errors.New("payload is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Update{}, fmt.Errorf("encode update %d: %w", payload.ID, err)
	}
	return Update{
		ID:      payload.ID,
		Kind:    kindOf(raw),
		Payload: payload,
		Raw:     raw,
	}, nil
}

func kindOf(raw []byte) Kind {
	fields := gjson.ParseBytes(raw)
	for _, k := range knownKinds {
		if v := fields.Get(string(k)); v.Exists() && v.Type != gjson.Null {
			return k
		}
	}
	return KindUnknown
}
