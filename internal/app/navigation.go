package app

import (
	"context"
	"sync"

	"go-backoffice-console/internal/event"
	"go-backoffice-console/internal/gateway"
	"go-backoffice-console/internal/session"
)

// signInNavigator publishes replace-navigation events to the UI. Within one
// signed-out period it sends a given path once, so the reconciler and the
// logout follower never stack two redirects.
type signInNavigator struct {
	bus event.Bus

	mu   sync.Mutex
	sent string
}

func (n *signInNavigator) Replace(path string) {
	n.mu.Lock()
	if n.sent == path {
		n.mu.Unlock()
		return
	}
	n.sent = path
	n.mu.Unlock()

	n.bus.Publish(event.New(event.TypeNavigate, "", event.NavigatePayload{Path: path, Replace: true}))
}

func (n *signInNavigator) reset() {
	n.mu.Lock()
	n.sent = ""
	n.mu.Unlock()
}

// followForcedLogouts sends the UI to sign-in whenever the session ends
// without the operator asking: the backend declared it invalid or another
// console process signed out. Profile rejections navigate on their own.
func followForcedLogouts(ctx context.Context, events <-chan event.Event, nav *signInNavigator, signInPath string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case event.TypeCredentialsSet, event.TypeSessionRestored:
				nav.reset()
			case event.TypeLoggedOut:
				payload, _ := ev.Payload.(event.SessionPayload)
				if forcedReason(payload.Reason) {
					nav.Replace(signInPath)
				}
			}
		}
	}
}

func forcedReason(reason string) bool {
	switch reason {
	case gateway.ReasonSessionInvalid, gateway.ReasonSessionInvalidAfterRefresh, session.ReasonExternal:
		return true
	}
	return false
}
