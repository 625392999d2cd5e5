package adminhub

import "context"

type clientIPContextKey struct{}
type accountContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP rate limiting and audit logging.
//
//	Docs: docs/rate_limiting.md
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithAccount attaches an authenticated account to ctx. The middleware
// package populates it after a successful guard check; handlers read it
// back with [AccountFromContext].
//
//	Docs: docs/middleware.md
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext returns the account stored by [WithAccount], or nil
// when the request was never authenticated.
//
//	Docs: docs/middleware.md
func AccountFromContext(ctx context.Context) *Account {
	if ctx == nil {
		return nil
	}

	account, _ := ctx.Value(accountContextKey{}).(*Account)
	return account
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
