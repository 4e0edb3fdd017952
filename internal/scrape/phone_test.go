package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneDigits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		digits string
		want   int64
		ok     bool
	}{
		{"10 digits leading zero", "0631234567", 380631234567, true},
		{"9 digits known operator", "631234567", 380631234567, true},
		{"canonical 12 digits", "380631234567", 380631234567, true},
		{"13 digits truncated", "3806312345678", 380631234567, true},
		{"11 digits kept", "38063123456", 38063123456, true},
		{"9 digits unknown operator", "441234567", 0, false},
		{"8 digits", "12345678", 0, false},
		{"empty", "", 0, false},
		{"12 digits wrong prefix", "123456789012", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := normalizePhoneDigits(tc.digits)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	t.Run("escaped quote and nested object", func(t *testing.T) {
		t.Parallel()

		text := `garbage "actionData": {"say":"he said \"hi\"","inner":{"n":1}} trailing`
		obj, ok := extractJSONObject(text, strings.Index(text, "actionData"))
		require.True(t, ok)
		assert.Equal(t, `{"say":"he said \"hi\"","inner":{"n":1}}`, obj)
	})

	t.Run("braces inside string values", func(t *testing.T) {
		t.Parallel()

		text := `{"s":"}{","t":"{{{"} rest`
		obj, ok := extractJSONObject(text, 0)
		require.True(t, ok)
		assert.Equal(t, `{"s":"}{","t":"{{{"}`, obj)
	})

	t.Run("unterminated object", func(t *testing.T) {
		t.Parallel()

		_, ok := extractJSONObject(`{"a":{"b":1}`, 0)
		assert.False(t, ok)
	})

	t.Run("no object after start", func(t *testing.T) {
		t.Parallel()

		_, ok := extractJSONObject("plain text", 0)
		assert.False(t, ok)
	})
}

func TestExtractPhonePayload(t *testing.T) {
	t.Parallel()

	t.Run("well formed control", func(t *testing.T) {
		t.Parallel()

		html := `<script>{"popUp":{"id":"autoPhone","title":"Показати телефон",
			"actionData": {"autoId":12345,"hash":"abc123","layer":"final-page"}}}</script>`

		payload, ok := ExtractPhonePayload(html)
		require.True(t, ok)
		assert.Equal(t, float64(12345), payload["autoId"])
		assert.Equal(t, "abc123", payload["hash"])
	})

	t.Run("missing marker", func(t *testing.T) {
		t.Parallel()

		_, ok := ExtractPhonePayload(`<script>{"actionData": {"autoId":1}}</script>`)
		assert.False(t, ok)
	})

	t.Run("marker without action data", func(t *testing.T) {
		t.Parallel()

		_, ok := ExtractPhonePayload(`<script>{"id":"autoPhone"}</script>`)
		assert.False(t, ok)
	})

	t.Run("unterminated action data", func(t *testing.T) {
		t.Parallel()

		_, ok := ExtractPhonePayload(`{"id":"autoPhone","actionData": {"autoId":1`)
		assert.False(t, ok)
	})
}

func TestPhoneFromPopupResponse(t *testing.T) {
	t.Parallel()

	t.Run("tel link preferred", func(t *testing.T) {
		t.Parallel()

		raw := []byte(`{"html":"<a href=\"tel:+380 63 123 45 67\">call</a> (050) 999 88 77"}`)
		phone := phoneFromPopupResponse(raw)
		require.NotNil(t, phone)
		assert.Equal(t, int64(380631234567), *phone)
	})

	t.Run("formatted fallback", func(t *testing.T) {
		t.Parallel()

		raw := []byte(`{"phones":[{"formatted":"(063) 123 45 67"}]}`)
		phone := phoneFromPopupResponse(raw)
		require.NotNil(t, phone)
		assert.Equal(t, int64(380631234567), *phone)
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, phoneFromPopupResponse([]byte(`{"status":"hidden"}`)))
	})

	t.Run("short digits rejected", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, phoneFromPopupResponse([]byte(`tel: 123 45 67 8`)))
	})
}
