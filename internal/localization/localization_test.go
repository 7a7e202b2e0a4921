package localization_test

import (
	"testing"
	"testing/fstest"

	"shelterlink/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_NewMessage(t *testing.T) {
	l := localization.Default()

	assert.Equal(t, "New message from Dana", l.Format("en", localization.KeyNewMessage, "Dana"))
	assert.Equal(t, "Нове повідомлення від Dana", l.Format("UK", localization.KeyNewMessage, "Dana"))
	assert.Equal(t, "New message from Dana", l.Format("", localization.KeyNewMessage, "Dana"), "empty language falls back to en")
	assert.Equal(t, "New message from Dana", l.Format("fr", localization.KeyNewMessage, "Dana"))
}

func TestGetString_MissingKeyReturnsKey(t *testing.T) {
	l := localization.Default()
	assert.Equal(t, "no.such.key", l.GetString("uk", "no.such.key"))
}

func TestNewLocalizer_SkipsNonJSONAndRejectsMalformed(t *testing.T) {
	l, err := localization.NewLocalizer(fstest.MapFS{
		"de.json":   {Data: []byte(`{"greeting":"Hallo"}`)},
		"README.md": {Data: []byte("notes")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", l.GetString("de", "greeting"))

	_, err = localization.NewLocalizer(fstest.MapFS{"en.json": {Data: []byte(`{`)}})
	assert.ErrorContains(t, err, "en.json")
}
