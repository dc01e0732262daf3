// Package auth carries the caller identity through the request and enforces
// role checks. Authentication itself happens upstream at the API gateway;
// this layer trusts the identity headers the gateway forwards.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

const (
	// UserIDHeader carries the authenticated user's UUID, set by the gateway.
	UserIDHeader = "X-User-ID"
	// UserRolesHeader carries a comma-separated role list, set by the gateway.
	UserRolesHeader = "X-User-Roles"
)

// GatewayAuthMiddleware extracts the caller identity from the trusted gateway
// headers. Requests without a valid user ID are rejected.
func GatewayAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawID := c.Request().Header.Get(UserIDHeader)
			if rawID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
			}

			userID, err := uuid.Parse(rawID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid user identity")
			}

			var roles []string
			for _, r := range strings.Split(c.Request().Header.Get(UserRolesHeader), ",") {
				if r = strings.TrimSpace(r); r != "" {
					roles = append(roles, r)
				}
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that grants
// every request an admin identity when no gateway headers are present.
func DevAuthMiddleware() echo.MiddlewareFunc {
	devUserID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(UserIDHeader) != "" {
				return GatewayAuthMiddleware()(next)(c)
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, devUserID)
			ctx = context.WithValue(ctx, UserRolesKey, []string{"admin"})
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user's ID, or uuid.Nil when
// the request was not authenticated.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	uid, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
