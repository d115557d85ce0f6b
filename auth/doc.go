// Package auth holds the credential side of courier: where bearer tokens
// live (TokenStore), how a rejected token is replaced (Authenticator), and
// the Coordinator that makes sure concurrent rejections share a single
// refresh.
//
// A typical wiring:
//
//	store := auth.NewMemoryStore("")
//	authn := auth.NewClientCredentialsAuthenticator(&clientcredentials.Config{...})
//	coord := auth.NewCoordinator(store, authn, auth.WithLogger(log))
//
//	p := coord.Refresh(ctx)
//	token, err := p.Wait(ctx)
//
// Every Pending handed out by the Coordinator is resolved exactly once,
// with the new token on success or the refresh error on failure.
package auth
