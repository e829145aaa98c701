package walletsession

import "context"

// View is the read-only consumer projection of a Session: the active address,
// whether the session is connected, and a connect entry point that delegates
// to the broker. It holds no state of its own.
type View struct {
	session *Session
}

// Projection returns the current projection.
func (v *View) Projection() Projection {
	return v.session.Projection()
}

// Address returns the active wallet's address, or "".
func (v *View) Address() string {
	return v.session.Projection().Address
}

// IsConnected reports whether the session is unlocked with an active wallet.
func (v *View) IsConnected() bool {
	return v.session.Projection().IsConnected
}

// Connect delegates to the session's broker.
func (v *View) Connect(ctx context.Context) (Wallet, error) {
	return v.session.Connect(ctx)
}

// Watch streams the projection, starting with the current value, until ctx
// is done. The channel is closed afterwards.
func (v *View) Watch(ctx context.Context) <-chan Projection {
	updates, unsubscribe := v.session.Subscribe()
	out := make(chan Projection, 1)

	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
