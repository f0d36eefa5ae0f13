package conversation

import "fmt"

// Status 会话状态机的当前状态
// Status is the session's externally visible state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusRequiresPermission
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRequiresPermission:
		return "requires_permission"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "loading":
		*s = StatusLoading
	case "requires_permission":
		*s = StatusRequiresPermission
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}
