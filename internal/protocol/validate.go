package protocol

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxChatBytes bounds the encoded size of a chat message.
	MaxChatBytes = 4096
	// MaxChatChars bounds the visible character count of a chat message.
	MaxChatChars = 2000
)

// ValidateChatText checks that a chat message meets content requirements.
// Signaling payloads (SDP, ICE) are never validated; only user-entered chat
// text is bounded.
func ValidateChatText(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("protocol: chat text is empty")
	}
	if len(text) > MaxChatBytes {
		return fmt.Errorf("protocol: chat text exceeds %d byte limit", MaxChatBytes)
	}
	if utf8.RuneCountInString(text) > MaxChatChars {
		return fmt.Errorf("protocol: chat text exceeds %d character limit", MaxChatChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("protocol: chat text contains invalid UTF-8")
	}
	return nil
}
