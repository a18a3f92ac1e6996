// Package protocol defines the light node's messaging vocabulary: the
// outbound telemetry topics and the inbound command payloads.
//
// Inbound payloads are plain text:
//
//	"on"          turn the lamp on
//	"off"         turn the lamp off
//	"<b>[#<m>]"   set brightness b (clamped 0..100); m is carried, not applied
package protocol

import (
	"strconv"
	"strings"
)

// Outbound topics.
const (
	TopicStatus     = "light/status"
	TopicState      = "light/state"
	TopicBrightness = "light/brightness"
	TopicMode       = "light/mode"
)

// Status and state payloads.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StateOn       = "on"
	StateOff      = "off"
)

// Brightness bounds.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// Kind identifies a decoded command.
type Kind int

const (
	TurnOn Kind = iota + 1
	TurnOff
	SetLevel
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case TurnOn:
		return "turn_on"
	case TurnOff:
		return "turn_off"
	case SetLevel:
		return "set_level"
	default:
		return "unknown"
	}
}

// Command is a decoded inbound payload.
type Command struct {
	Kind       Kind
	Brightness int

	// Mode is the optional second token of a level payload. HasMode is
	// false when the payload had no second token or it was not numeric.
	Mode    int
	HasMode bool
}

// maxTokens is how many '#'-separated tokens a level payload may carry.
const maxTokens = 2

// Decode parses a command payload. ok is false for payloads that are not
// a recognised command, which callers drop silently.
func Decode(payload []byte) (cmd Command, ok bool) {
	text := strings.TrimSpace(string(payload))
	switch text {
	case "on":
		return Command{Kind: TurnOn}, true
	case "off":
		return Command{Kind: TurnOff}, true
	case "":
		return Command{}, false
	}

	tokens := strings.SplitN(text, "#", maxTokens+1)
	level, err := strconv.Atoi(strings.TrimSpace(tokens[0]))
	if err != nil {
		return Command{}, false
	}

	cmd = Command{Kind: SetLevel, Brightness: ClampBrightness(level)}
	if len(tokens) > 1 {
		if mode, err := strconv.Atoi(strings.TrimSpace(tokens[1])); err == nil {
			cmd.Mode = mode
			cmd.HasMode = true
		}
	}
	return cmd, true
}

// ClampBrightness bounds v to 0..100.
func ClampBrightness(v int) int {
	switch {
	case v < MinBrightness:
		return MinBrightness
	case v > MaxBrightness:
		return MaxBrightness
	default:
		return v
	}
}

// ModeLabel returns the light/mode payload for a mode value.
func ModeLabel(mode int) string {
	switch mode {
	case 1:
		return "white"
	case 2:
		return "yellow"
	case 3:
		return "both"
	default:
		return "off"
	}
}

// StateLabel returns the light/state payload.
func StateLabel(on bool) string {
	if on {
		return StateOn
	}
	return StateOff
}

// Message is an outbound publish.
type Message struct {
	Topic   string
	Payload string
}

// StatusBurst returns the messages published once after every session open.
func StatusBurst(on bool, brightness, mode int) []Message {
	return []Message{
		{Topic: TopicStatus, Payload: StatusOnline},
		{Topic: TopicState, Payload: StateLabel(on)},
		{Topic: TopicBrightness, Payload: strconv.Itoa(brightness)},
		{Topic: TopicMode, Payload: ModeLabel(mode)},
	}
}
