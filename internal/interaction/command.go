// Package interaction turns button clicks from a notification channel into
// service responses.
package interaction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedCommand is returned for values that do not have the
	// kind:call_id[:option] shape.
	ErrMalformedCommand = errors.New("interaction: malformed command")

	// ErrUnknownCommand is returned for a well-formed value whose kind is
	// not recognised.
	ErrUnknownCommand = errors.New("interaction: unknown command")
)

// Kind is the action a command performs.
type Kind string

const (
	KindApprove Kind = "approve"
	KindDeny    Kind = "deny"
	KindReject  Kind = "reject"
	KindRespond Kind = "respond"
)

const sep = ":"

// Command is the typed form of an interactive button value.
type Command struct {
	Kind   Kind
	CallID string
	// Option is the reject or response option name. It may contain ':'.
	Option string
}

func Approve(callID string) Command { return Command{Kind: KindApprove, CallID: callID} }

func Deny(callID string) Command { return Command{Kind: KindDeny, CallID: callID} }

func Reject(callID, option string) Command {
	return Command{Kind: KindReject, CallID: callID, Option: option}
}

func Respond(callID, option string) Command {
	return Command{Kind: KindRespond, CallID: callID, Option: option}
}

// Encode renders the command as kind:call_id[:option].
func (c Command) Encode() string {
	if c.Option == "" {
		return string(c.Kind) + sep + c.CallID
	}
	return string(c.Kind) + sep + c.CallID + sep + c.Option
}

func (c Command) String() string { return c.Encode() }

// Decode parses a kind:call_id[:option] value. Everything after the second
// separator is the option, separators included.
func Decode(value string) (Command, error) {
	parts := strings.SplitN(value, sep, 3)
	if len(parts) < 2 || parts[1] == "" {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, value)
	}
	cmd := Command{Kind: Kind(parts[0]), CallID: parts[1]}
	if len(parts) == 3 {
		cmd.Option = parts[2]
	}

	// reject and respond tolerate a missing option; the handler records it
	// as an empty option name.
	switch cmd.Kind {
	case KindApprove, KindDeny, KindReject, KindRespond:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, parts[0])
	}
	return cmd, nil
}
