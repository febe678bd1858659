package session

import "errors"

type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Banner texts shown while the session runs on stale or local data.
const (
	BannerPermission = "Remote store permission denied. Please check your security rules."
	BannerLoadError  = "Error loading user data. Please try again later."
)

var (
	ErrUnauthenticated = errors.New("no active session")
	ErrValidation      = errors.New("invalid settings")
	ErrReloading       = errors.New("session is reloading, retry shortly")
)
