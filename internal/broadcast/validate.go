package broadcast

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxPayloadBytes is the largest payload Broadcast will accept.
const MaxPayloadBytes = 65536

// MaxChannelNameLen is the longest ChannelName Broadcast will accept.
const MaxChannelNameLen = 100

// channelNamePattern matches the allowed ChannelName grammar: 1-100
// characters drawn from letters, digits, '.', '_', ':', '-'.
var channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,100}$`)

// reservedPrefix is the channel-name prefix reserved for internal use.
const reservedPrefix = "_system"

// ErrInvalidChannelName is returned when a channel name fails validation.
var ErrInvalidChannelName = errors.New("invalid channel name")

// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrPayloadMissing names the missing-payload failure. No function in
// this package returns it: a Go string cannot be nil, and
// ValidatePayload accepts the empty string as a valid payload.
var ErrPayloadMissing = errors.New("payload missing")

// ValidateChannelName checks name against the ChannelName grammar from
// the data model: non-empty, at most 100 bytes, matching
// ^(?!_system)[A-Za-z0-9._:\-]{1,100}$. Names are compared byte-exact;
// no normalization is performed.
func ValidateChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelName)
	}
	if len(name) > MaxChannelNameLen {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrInvalidChannelName, len(name), MaxChannelNameLen)
	}
	if strings.HasPrefix(name, reservedPrefix) {
		return fmt.Errorf("%w: %q uses reserved prefix %q", ErrInvalidChannelName, name, reservedPrefix)
	}
	if !channelNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidChannelName, name)
	}
	return nil
}

// ValidatePayload checks payload against the 64 KiB size ceiling. The
// empty string is a valid payload; the system never parses payload
// content.
func ValidatePayload(payload string) error {
	if len(payload) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrPayloadTooLarge, len(payload), MaxPayloadBytes)
	}
	return nil
}
