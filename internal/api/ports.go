package api

import (
	"context"
	"net/http"

	"github.com/orbital-demo/satlink/internal/audit"
	"github.com/orbital-demo/satlink/internal/discovery"
)

// HubPort is what the API needs from the discovery hub.
type HubPort interface {
	Register(ctx context.Context, req discovery.RegisterRequest, remoteAddr string) (discovery.Announcement, error)
	SubscribeNotify(ctx context.Context, w http.ResponseWriter, r *http.Request, accepted func(id string)) error
	Subscribers() int
}

// SubscriptionAuditor records event streams opening and closing.
type SubscriptionAuditor interface {
	LogSubscription(ctx context.Context, action, remote, outcome string)
}

var _ HubPort = (*discovery.Hub)(nil)
var _ SubscriptionAuditor = (*audit.Logger)(nil)
