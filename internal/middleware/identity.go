package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/model"
)

// accountKey is the echo context key holding the authenticated account.
const accountKey = "account"

// CurrentAccount returns the account resolved by Authenticate.
func CurrentAccount(c echo.Context) (model.Account, bool) {
	a, ok := c.Get(accountKey).(model.Account)
	return a, ok
}

// identity names the caller for rate-limit keys: the account id when
// authenticated, "anon" otherwise.
func identity(c echo.Context) string {
	if a, ok := CurrentAccount(c); ok {
		return strconv.FormatUint(a.ID, 10)
	}
	return "anon"
}
