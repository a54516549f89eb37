package script

// Validate checks a classified command against the direction rules. It
// returns a *SemanticError describing the first violation.
func Validate(cmd Command) error {
	if reason := violation(cmd); reason != "" {
		return &SemanticError{Line: cmd.Line, Input: cmd.String(), Command: cmd, Reason: reason}
	}
	return nil
}

func violation(cmd Command) string {
	first, second := cmd.Types[0], cmd.Types[1]

	if first == TokenInvalid || second == TokenInvalid {
		return "malformed field"
	}

	switch cmd.Direction {
	case SendRecv:
		switch first {
		case TokenToken:
			return "cannot send a token"
		case TokenSize:
			return "cannot send a size"
		case TokenRegex:
			return "cannot send a regex"
		case TokenEmpty:
			return "nothing to send"
		}
	case RecvSend:
		switch first {
		case TokenFilename:
			return "cannot receive into a file in first position"
		case TokenEmpty:
			return "nothing to receive"
		}
		switch second {
		case TokenSize:
			return "cannot send a size"
		case TokenRegex:
			return "cannot send a regex"
		}
	default:
		return "invalid direction"
	}

	if !first.hasPayload() && !second.hasPayload() {
		return "both fields empty"
	}
	return ""
}
