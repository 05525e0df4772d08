package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNoErrOK(t *testing.T) {
	data := map[string]string{"conversation_id": "conv-1"}
	ev := NoErrOK(42, data)

	assert.Equal(t, 42, ev.Id, "expected event id to be echoed")
	assert.NotNil(t, ev.Response, "expected a response variant")
	assert.Equal(t, http.StatusOK, ev.Response.ResponseCode, "expected 200 response code")
	assert.Empty(t, ev.Response.Error, "expected no error string")
	assert.Equal(t, data, ev.Response.Data, "expected data to be carried through")
	assert.False(t, ev.Timestamp.IsZero(), "expected timestamp to be set")
}

func TestNoErrAccepted(t *testing.T) {
	ev := NoErrAccepted(7)

	assert.Equal(t, 7, ev.Id, "expected event id to be echoed")
	assert.Equal(t, http.StatusAccepted, ev.Response.ResponseCode, "expected 202 response code")
	assert.Empty(t, ev.Response.Error, "expected no error string")
	assert.Nil(t, ev.Response.Data, "expected no data")
}

func TestErrNotFound(t *testing.T) {
	ev := ErrNotFound(7)

	assert.Equal(t, 7, ev.Id, "expected event id to be echoed")
	assert.Equal(t, http.StatusNotFound, ev.Response.ResponseCode, "expected 404 response code")
	assert.Equal(t, "not found", ev.Response.Error, "expected error string")
}

func TestErrForbidden(t *testing.T) {
	ev := ErrForbidden(7)

	assert.Equal(t, 7, ev.Id, "expected event id to be echoed")
	assert.Equal(t, http.StatusForbidden, ev.Response.ResponseCode, "expected 403 response code")
	assert.Equal(t, "not a participant", ev.Response.Error, "expected error string")
}

func TestErrInternalError(t *testing.T) {
	ev := ErrInternalError(7)

	assert.Equal(t, 7, ev.Id, "expected event id to be echoed")
	assert.Equal(t, http.StatusInternalServerError, ev.Response.ResponseCode, "expected 500 response code")
	assert.Equal(t, "internal server error", ev.Response.Error, "expected error string")
}

func TestErrInvalidEvent(t *testing.T) {
	tcases := []struct {
		name       string
		id         int
		expectedId int
	}{
		{
			name:       "positive id is echoed",
			id:         9,
			expectedId: 9,
		},
		{
			name:       "unparseable event has no id",
			id:         -1,
			expectedId: 0,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ev := ErrInvalidEvent(tc.id)
			assert.Equal(t, tc.expectedId, ev.Id, "expected id %d, got %d", tc.expectedId, ev.Id)
			assert.Equal(t, http.StatusBadRequest, ev.Response.ResponseCode, "expected 400 response code")
			assert.Equal(t, "invalid event format", ev.Response.Error, "expected error string")
		})
	}
}

func TestClientEventUnmarshal(t *testing.T) {
	tcases := []struct {
		name  string
		raw   string
		check func(t *testing.T, ev ClientEvent)
	}{
		{
			name: "joinConversation",
			raw:  `{"id":1,"joinConversation":{"conversation_id":"conv-1"}}`,
			check: func(t *testing.T, ev ClientEvent) {
				assert.Equal(t, 1, ev.Id, "expected id to be parsed")
				assert.NotNil(t, ev.Join, "expected join variant")
				assert.Equal(t, "conv-1", ev.Join.ConversationId, "expected conversation id")
			},
		},
		{
			name: "leaveConversation",
			raw:  `{"id":2,"leaveConversation":{"conversation_id":"conv-1"}}`,
			check: func(t *testing.T, ev ClientEvent) {
				assert.NotNil(t, ev.Leave, "expected leave variant")
			},
		},
		{
			name: "typing",
			raw:  `{"typing":{"conversation_id":"conv-1"}}`,
			check: func(t *testing.T, ev ClientEvent) {
				assert.NotNil(t, ev.Typing, "expected typing variant")
				assert.Nil(t, ev.StopTyping, "expected no stopTyping variant")
			},
		},
		{
			name: "reaction",
			raw:  `{"id":3,"reaction":{"message_id":"msg-1","emoji":"🎉"}}`,
			check: func(t *testing.T, ev ClientEvent) {
				assert.NotNil(t, ev.Reaction, "expected reaction variant")
				assert.Equal(t, "msg-1", ev.Reaction.MessageId, "expected message id")
				assert.Equal(t, "🎉", ev.Reaction.Emoji, "expected emoji")
			},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var ev ClientEvent
			err := json.Unmarshal([]byte(tc.raw), &ev)
			assert.NoError(t, err, "expected event to parse")
			tc.check(t, ev)
		})
	}
}

func TestServerEventMarshalOmitsEmptyVariants(t *testing.T) {
	msg := types.Message{ExternalId: "msg-1", ConversationId: "conv-1", Body: "hi"}
	ev := &ServerEvent{
		BaseEvent:  BaseEvent{Timestamp: Now()},
		NewMessage: &msg,
	}

	raw, err := json.Marshal(ev)
	assert.NoError(t, err, "expected event to marshal")

	var decoded map[string]json.RawMessage
	err = json.Unmarshal(raw, &decoded)
	assert.NoError(t, err, "expected marshaled event to parse")
	assert.Contains(t, decoded, "newMessage", "expected the set variant to be present")
	assert.NotContains(t, decoded, "editMessage", "expected unset variants to be omitted")
	assert.NotContains(t, decoded, "response", "expected unset variants to be omitted")
	assert.NotContains(t, decoded, "typing", "expected unset variants to be omitted")
}

func TestNow(t *testing.T) {
	ts := Now()
	assert.Equal(t, time.UTC, ts.Location(), "expected UTC timestamps")
	assert.Equal(t, ts, ts.Round(time.Millisecond), "expected millisecond precision")
}
