package chatstream_test

import (
	"testing"

	"github.com/fwojciec/chatstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_Accept(t *testing.T) {
	t.Parallel()
	t.Run("concatenates fragments in order", func(t *testing.T) {
		t.Parallel()
		a := chatstream.NewAssembler("s1")
		text, err := a.Accept("Hel")
		require.NoError(t, err)
		assert.Equal(t, "Hel", text)
		text, err = a.Accept("lo")
		require.NoError(t, err)
		assert.Equal(t, "Hello", text)
		assert.Equal(t, []string{"Hel", "lo"}, a.Fragments())
		assert.Equal(t, 2, a.Len())
	})

	t.Run("notifies observers with a growing prefix", func(t *testing.T) {
		t.Parallel()
		a := chatstream.NewAssembler("s1")
		var updates []chatstream.Update
		a.Observe(func(u chatstream.Update) { updates = append(updates, u) })
		a.Observe(nil)

		_, _ = a.Accept("a")
		_, _ = a.Accept("b")

		assert.Equal(t, []chatstream.Update{
			{SessionID: "s1", Fragment: "a", Text: "a"},
			{SessionID: "s1", Fragment: "b", Text: "ab"},
		}, updates)
	})

	t.Run("rejects fragments after freeze", func(t *testing.T) {
		t.Parallel()
		a := chatstream.NewAssembler("s1")
		called := false
		a.Observe(func(chatstream.Update) { called = true })
		_, _ = a.Accept("a")
		called = false

		a.Freeze()
		text, err := a.Accept("b")
		require.ErrorIs(t, err, chatstream.ErrMessageFrozen)
		assert.Equal(t, "a", text)
		assert.False(t, called)
		assert.True(t, a.Frozen())
	})
}

func TestAssembler_Message(t *testing.T) {
	t.Parallel()
	a := chatstream.NewAssembler("s1")
	_, _ = a.Accept("x")
	m := a.Message()
	m.Fragments[0] = "mutated"
	assert.Equal(t, []string{"x"}, a.Fragments())
	assert.Equal(t, "x", m.Text)
	assert.Equal(t, chatstream.RoleAssistant, m.Turn().Role)
	assert.Equal(t, "x", m.Turn().Content)
}
