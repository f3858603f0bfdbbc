package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/session"
)

const (
	contextTokenKey     = "examToken"
	contextSessionIDKey = "sessionID"

	// a verified token proves the face check passed and lets its bearer start one session
	tokenVerified = "verified"
	// a session token gives access to a single session
	tokenSession = "session"

	audience = "Exam"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Kind   string  `json:"kind"`
	Person string  `json:"person,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// VerifiedClaims returns the claims of a candidate whose face has just been verified.
func VerifiedClaims(conf *core.Config, res session.VerifyResult) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   res.Person,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.VerifyTokenDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Kind:   tokenVerified,
		Person: res.Person,
		Score:  res.Score,
	}
}

// SessionClaims returns the claims giving access to an exam session.
func SessionClaims(conf *core.Config, sess session.Session) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    conf.AppName,
			Subject:   sess.ID.String(),
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.SessionTokenDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Kind:   tokenSession,
		Person: sess.VerifiedPerson,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextSessionID(ctx echo.Context) (uuid.UUID, error) {
	if id, ok := ctx.Get(contextSessionIDKey).(uuid.UUID); ok {
		return id, nil
	}
	return uuid.Nil, errUnauthorized
}
