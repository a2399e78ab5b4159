package wsproto

import (
	"encoding/json"
	"testing"
	"testing/quick"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

// TestEscapeJSONStringRoundTrips is invariant 2 from spec.md §8: wrapping
// the escaped output in quotes must parse back to the original string with
// a conforming JSON decoder. The output bytes themselves are not inspected
// here; every byte >= 0x20, 0x7F included, passes through unescaped.
func TestEscapeJSONStringRoundTrips(t *testing.T) {
	prop := func(s string) bool {
		if !utf8.ValidString(s) {
			return true // quick may generate invalid UTF-8; not our contract
		}
		escaped := EscapeJSONString(s)
		wire := `"` + escaped + `"`

		var out string
		if err := json.Unmarshal([]byte(wire), &out); err != nil {
			t.Logf("unmarshal %q failed: %v", wire, err)
			return false
		}
		return out == s
	}
	require.NoError(t, quick.Check(prop, &quick.Config{MaxCount: 1000}))
}

func TestEscapeJSONStringControlChars(t *testing.T) {
	require.Equal(t, `\"quoted\"`, EscapeJSONString(`"quoted"`))
	require.Equal(t, `line1\nline2`, EscapeJSONString("line1\nline2"))
	require.Equal(t, `\u0001`, EscapeJSONString("\x01"))
	require.Equal(t, `tab\there`, EscapeJSONString("tab\there"))
	require.Equal(t, `back\\slash`, EscapeJSONString(`back\slash`))
}

func TestEscapeJSONStringPassesThroughUTF8(t *testing.T) {
	s := "héllo wörld 日本語"
	require.Equal(t, s, EscapeJSONString(s))
}
