package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseUserID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("user1")
	f.Add("ABCD123456HDFXYZ12")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err == nil {
			roundTrip, err2 := ParseUserID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
