// Package httpclient turns declarative request descriptions into HTTP
// attempts.
//
// A Target describes one logical request. The Client builds it into a
// WireRequest once, then runs it as a sequence of physical attempts. Every
// attempt passes through the interceptor chain (WillSend, DidReceive) and
// non-success outcomes are put to a retry vote (ShouldRetry). Responses with
// status 401 or 403 suspend the request on the auth.Coordinator, which runs
// at most one token refresh at a time and replays every suspended request
// once it resolves.
//
// Basic usage:
//
//	client, err := httpclient.NewBuilder("https://api.example.com/", log).
//		WithTimeout(10 * time.Second).
//		WithRetries(2, httpclient.ExponentialBackoff(time.Second, 0)).
//		WithTokenStore(store).
//		WithAuthenticator(authn).
//		Build()
//
//	user, resp, err := httpclient.Fetch(ctx, client, httpclient.Target{
//		Path:         "users/42",
//		RequiresAuth: true,
//	}, httpclient.JSON[User]())
//
// Each logical request ends in exactly one result. Failures are *Error
// values whose Kind can be checked with IsKind or errors.Is against the
// sentinel errors.
package httpclient
