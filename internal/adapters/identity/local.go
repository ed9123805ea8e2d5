package identity

import (
	"context"

	"github.com/fasttrack/core/internal/ports"
)

// The fixed identity used whenever no cloud backend is configured. Local
// mode is single-tenant, so there is nothing to authenticate against.
var mockIdentity = ports.Identity{
	UID:         "local-user",
	Email:       "local@demo.com",
	DisplayName: "Local User",
}

// LocalProvider is the in-process mock identity provider for local mode.
// Sign-in always succeeds with the mock user; credentials are ignored.
type LocalProvider struct {
	broadcaster
}

// NewLocalProvider returns a provider with no signed-in user.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{broadcaster: newBroadcaster()}
}

// SignUp behaves like SignIn; there are no accounts to create locally.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*ports.Identity, error) {
	return p.SignIn(ctx, email, password)
}

// SignIn activates the mock identity.
func (p *LocalProvider) SignIn(_ context.Context, _, _ string) (*ports.Identity, error) {
	id := mockIdentity
	p.set(&id)
	return &id, nil
}

// SignOut clears the mock identity.
func (p *LocalProvider) SignOut(_ context.Context) error {
	p.set(nil)
	return nil
}
