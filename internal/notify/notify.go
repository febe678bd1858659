package notify

import (
	"context"
	"fmt"
	"sync"
)

type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// ParsePermission accepts the config spelling of a permission state.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDenied, PermissionUndetermined:
		return p, nil
	case "":
		return PermissionUndetermined, nil
	}
	return "", fmt.Errorf("unknown notification permission %q", s)
}

// Sink shows best-effort local notifications.
type Sink interface {
	PermissionState() Permission
	RequestPermission(ctx context.Context) Permission
	Show(ctx context.Context, title, body string) error
}

// permissionState is embedded by sinks. An undetermined state resolves to
// onRequest when asked.
type permissionState struct {
	mu        sync.Mutex
	state     Permission
	onRequest Permission
}

func (p *permissionState) setupPermission(initial, onRequest Permission) {
	if initial == "" {
		initial = PermissionUndetermined
	}
	if onRequest == "" || onRequest == PermissionUndetermined {
		onRequest = PermissionGranted
	}
	p.state, p.onRequest = initial, onRequest
}

func (p *permissionState) PermissionState() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *permissionState) RequestPermission(ctx context.Context) Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PermissionUndetermined {
		p.state = p.onRequest
	}
	return p.state
}
