package sanitize

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	in := "Call me on +880 1711-000000 or mail rahima@example.com. NID 1990123456789. Filed in 2021."
	out := RedactPII(in)

	assert.NotContains(t, out, "rahima@example.com")
	assert.NotContains(t, out, "1711-000000")
	assert.NotContains(t, out, "1990123456789")
	assert.Contains(t, out, "[redacted email]")
	assert.Contains(t, out, "[redacted phone]")
	assert.Contains(t, out, "2021", "short numbers are not phone numbers")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))
	assert.Equal(t, "land dispute…", Summary("land dispute with neighbour", 14))
	assert.Equal(t, "abcdefghij…", Summary("abcdefghijklmnop", 10))
}

func TestSummary_KeepsMultiByteRunesWhole(t *testing.T) {
	// Bangla without spaces: every rune is three bytes, so byte 10 is mid-rune.
	in := "জমিসংক্রান্তবিরোধ"
	out := Summary(in, 10)

	assert.True(t, utf8.ValidString(out), "invalid UTF-8: %q", out)
	assert.Equal(t, "জমি…", out)
}
