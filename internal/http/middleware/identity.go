package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"fileshare/internal/model"
	"fileshare/internal/service"
)

const (
	// AccountLocalKey holds the *model.Account of the authenticated caller.
	AccountLocalKey = "account"
	// ClientKeyLocalKey holds the rate limiting key of the caller.
	ClientKeyLocalKey = "client_key"
)

// Identity resolves the caller named by header to an account and stores it under
// AccountLocalKey. The header is set by the authenticating proxy in front of this service.
// Resolution errors are returned to the app's ErrorHandler; a missing header is a 401.
func Identity(accounts service.AccountService, header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := accounts.Resolve(c.UserContext(), strings.TrimSpace(c.Get(header)))
		if err != nil {
			return err
		}
		c.Locals(AccountLocalKey, a)
		return c.Next()
	}
}

// AccountFromCtx returns the account stored by Identity, or nil.
func AccountFromCtx(c *fiber.Ctx) *model.Account {
	a, _ := c.Locals(AccountLocalKey).(*model.Account)
	return a
}

// ClientKey stores the caller's rate limiting key: the first entry of header (normally
// X-Forwarded-For) or, without it, the peer address.
func ClientKey(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if header != "" {
			if v := c.Get(header); v != "" {
				if first := strings.TrimSpace(strings.Split(v, ",")[0]); first != "" {
					// the limiter keeps the key after the request buffer is reused
					key = utils.CopyString(first)
				}
			}
		}
		c.Locals(ClientKeyLocalKey, key)
		return c.Next()
	}
}

// ClientKeyFromCtx returns the key stored by ClientKey, falling back to the peer address.
func ClientKeyFromCtx(c *fiber.Ctx) string {
	if k, ok := c.Locals(ClientKeyLocalKey).(string); ok && k != "" {
		return k
	}
	return c.IP()
}
