package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/keyboard"
)

type mapTranslator map[string]string

func (m mapTranslator) T(key string) string {
	if val, ok := m[key]; ok {
		return val
	}
	return key
}

func (m mapTranslator) Tf(key string, args map[string]string) string {
	return m.T(key)
}

func (m mapTranslator) Lang() string { return "en" }

func TestInlineKeyboardBuilder(t *testing.T) {
	builder := keyboard.NewInlineKeyboard()
	builder.AddRow(
		keyboard.InlineButton{Text: "Prev", Unique: "nav", Data: "1"},
		keyboard.InlineButton{Text: "Next", Unique: "nav", Data: "2"},
	).AddRow(
		keyboard.InlineButton{Text: "Confirm", Unique: "confirm"},
	)

	encoder := func(unique, data string) string {
		payload, err := keyboard.EncodeCallback(unique, data)
		require.NoError(t, err)
		return payload
	}

	markup := builder.Build(encoder)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	require.Len(t, markup.InlineKeyboard[1], 1)

	assert.Equal(t, "nav:2", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "confirm", markup.InlineKeyboard[1][0].Data)
}

func TestInlineKeyboardBuilder_NilEncoderFallsBackToRawData(t *testing.T) {
	markup := keyboard.NewInlineKeyboard().
		AddRow(keyboard.InlineButton{Text: "Menu", Unique: "back_to_menu"}).
		Build(nil)

	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "back_to_menu", markup.InlineKeyboard[0][0].Data)
}
