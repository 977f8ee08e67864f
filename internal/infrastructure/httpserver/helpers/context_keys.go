package helpers

import (
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	keyClientIdentity ctxKey = "client_identity"
	keyIdentitySource ctxKey = "identity_source"
)

func SetClientIdentity(c echo.Context, identity, source string) {
	c.Set(string(keyClientIdentity), identity)
	c.Set(string(keyIdentitySource), source)
}

func GetClientIdentityRaw(c echo.Context) (string, bool) {
	v := c.Get(string(keyClientIdentity))
	s, ok := v.(string)
	return s, ok
}

func GetIdentitySourceRaw(c echo.Context) (string, bool) {
	v := c.Get(string(keyIdentitySource))
	s, ok := v.(string)
	return s, ok
}
