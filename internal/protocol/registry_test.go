package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TagsMatchVariants(t *testing.T) {
	for tag, ctor := range registry {
		assert.Equal(t, tag, ctor().Type(), "registry key %q", tag)
	}
}

func TestRegistry_RequestsReplyWithRegisteredVariants(t *testing.T) {
	for tag, ctor := range registry {
		req, ok := ctor().(Request)
		if !ok {
			continue
		}
		assert.True(t, Known(req.ReplyType()), "%s replies with unregistered %s", tag, req.ReplyType())
	}
}

func TestRegistry_EveryIntentTagIsAnEvent(t *testing.T) {
	for _, tag := range EventTags() {
		ctor, ok := registry[tag]
		require.True(t, ok, "intent tag %q missing from registry", tag)
		ev, ok := ctor().(Event)
		require.True(t, ok, "%q does not implement Event", tag)
		assert.Contains(t, EventNames, ev.EventName())
	}
}

func TestRegistry_EncodeDecodeEveryVariant(t *testing.T) {
	for tag, ctor := range registry {
		raw, err := Encode(ctor(), "rid00001")
		require.NoError(t, err, tag)
		msg, err := Decode(raw)
		require.NoError(t, err, tag)
		assert.Equal(t, tag, msg.Type())
	}
}
