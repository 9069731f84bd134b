package devicex_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/passport/pkg/devicex"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      devicex.Device
	}{
		{
			name:      "android chrome",
			userAgent: "Mozilla/5.0 (Linux; Android 13; SM-S901B Build/TP1A.220624.014) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Mobile Safari/537.36",
			want:      devicex.Device{System: "Linux; Android 13; SM-S901B", Browser: "Chrome Mobile Safari"},
		},
		{
			name:      "windows chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			want:      devicex.Device{System: "Windows NT 10; Win64; x64", Browser: "Chrome Safari"},
		},
		{
			name:      "linux firefox",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/117.0",
			want:      devicex.Device{System: "X11; Linux x86; rv:109", Browser: "Gecko Firefox"},
		},
		{
			name:      "iphone safari",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			want:      devicex.Device{System: "iPhone; CPU iPhone OS 16 like Mac OS X", Browser: "Version Mobile Safari"},
		},
		{
			name:      "no parentheses",
			userAgent: "curl/8.4.1",
			want:      devicex.Device{System: "curl", Browser: ""},
		},
		{
			name:      "single parenthesized group only",
			userAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			want:      devicex.Device{System: "compatible; Googlebot; +http:", Browser: ""},
		},
		{
			name:      "empty",
			userAgent: "",
			want:      devicex.Device{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, devicex.Derive(tt.userAgent))
		})
	}
}

func TestDeriveTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)
	d := devicex.Derive("Mozilla/5.0 (" + long + ") " + long)

	require.Len(t, []rune(d.System), devicex.MaxFieldLen)
	require.Len(t, []rune(d.Browser), devicex.MaxFieldLen)
}

func TestDeriveTruncationMultibyte(t *testing.T) {
	// 100 three-byte runes. Truncation must count runes, not bytes.
	long := strings.Repeat("日", 100)
	d := devicex.Derive("Mozilla/5.0 (" + long + ")")

	require.Len(t, []rune(d.System), devicex.MaxFieldLen)
	require.True(t, strings.HasPrefix(long, d.System))
}

func TestDeriveEqualityIsExact(t *testing.T) {
	a := devicex.Derive("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/117.0")
	b := devicex.Derive("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0")
	c := devicex.Derive("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36")

	require.Equal(t, a, b, "version changes alone should not alter the fingerprint")
	require.NotEqual(t, a, c)
}

func TestIsZero(t *testing.T) {
	require.True(t, devicex.Derive("").IsZero())
	require.False(t, devicex.Derive("curl/8.4.1").IsZero())
}
