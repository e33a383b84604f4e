package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims is the JWT payload issued at login and consumed by JWTMiddleware.
type Claims struct {
	jwt.RegisteredClaims
	Name         string `json:"name"`
	Role         string `json:"role"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// JWTConfig configures token signing and verification.
type JWTConfig struct {
	SigningKey []byte
	Issuer     string
}

// IssueToken signs an HS256 token for the given principal.
func IssueToken(p Principal, cfg JWTConfig, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:         p.Name,
		Role:         string(p.Role),
		LocationID:   p.LocationID.String(),
		LocationName: p.LocationName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.SigningKey)
}

// JWTMiddleware validates the bearer token and places the resulting
// Principal on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			p, err := principalFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			ctx := WithPrincipal(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func principalFromClaims(claims *Claims) (Principal, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, err
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, err
	}
	// LocationID may be absent for administrators of the central store.
	locID, _ := uuid.Parse(claims.LocationID)
	return Principal{
		ID:           id,
		Name:         claims.Name,
		Role:         role,
		LocationID:   locID,
		LocationName: claims.LocationName,
	}, nil
}

// DevAuthMiddleware is a permissive middleware for development that gives
// unauthenticated requests an admin principal.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
				p := Principal{
					ID:   uuid.Nil,
					Name: "dev-admin",
					Role: RoleAdmin,
				}
				c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			}
			return next(c)
		}
	}
}
