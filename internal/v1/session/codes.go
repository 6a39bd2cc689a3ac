package session

import (
	"crypto/rand"
	"fmt"
)

// Room codes avoid characters that are easy to misread over voice or video
// (0/O, 1/I/L, S/5).
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRTUVWXYZ23456789"
	codeLength   = 6
)

// newRoomCode returns a random code drawn uniformly from the reduced
// alphabet. Bytes outside the unbiased range are rejected and redrawn.
func newRoomCode() (string, error) {
	const max = byte(len(codeAlphabet)) * (255 / byte(len(codeAlphabet)))

	code := make([]byte, 0, codeLength)
	buf := make([]byte, 1)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		if buf[0] >= max {
			continue
		}
		code = append(code, codeAlphabet[buf[0]%byte(len(codeAlphabet))])
	}
	return string(code), nil
}

// uniqueRoomCode draws codes until one is free in rooms. The caller must
// hold the registry lock.
func uniqueRoomCode(rooms map[string]*Room) (string, error) {
	for {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := rooms[code]; !taken {
			return code, nil
		}
	}
}
