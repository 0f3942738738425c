package room

import (
	"crypto/rand"
	"strings"
)

// Room codes are short enough to read out loud; the alphabet drops the
// characters people misread (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const codeLength = 5

// GenerateCode produces one candidate code with rejection sampling so every
// alphabet character is equally likely.
func GenerateCode() (string, error) {
	const max = byte(255 - (256 % len(codeAlphabet)))

	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b > max {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == codeLength {
				return string(out), nil
			}
		}
	}
}

// NormalizeCode maps user input onto the canonical code form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
