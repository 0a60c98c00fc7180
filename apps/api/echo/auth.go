package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/teacher"
)

const (
	jwtContextKey = "teacherToken"
)

// Claims represents the authorization claims transmitted via a JWT.
// Subject carries the provider-issued teacher id.
type Claims struct {
	jwt.StandardClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// GetTeacherClaims builds portal claims for a signed-in Teacher.
func GetTeacherClaims(conf *core.Config, t teacher.Teacher) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   t.ID,
			Audience:  "TeacherBoard",
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:    t.Name,
		Email:   t.Email,
		Picture: t.Picture,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(conf.SecretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextTeacher rebuilds the Teacher from the token claims; identity is
// never persisted so the token is the source of truth.
func getContextTeacher(ctx echo.Context) (teacher.Teacher, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return teacher.Teacher{}, err
	}
	return teacher.Teacher{
		ID:      claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}, nil
}

// Handlers

type authApi struct {
	deps ServerDeps
}

func registerAuthAPI(g *echo.Group, deps ServerDeps) {
	api := authApi{deps: deps}

	ag := g.Group("/auth")
	ag.POST("/google", api.signInWithGoogle)
	ag.POST("/signout", api.signOut)
}

func (api *authApi) signInWithGoogle(ctx echo.Context) error {
	var data teacher.SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	t, err := api.deps.TeacherSvc.SignIn(ctx.Request().Context(), data)
	if err != nil {
		return err
	}

	token, err := GenerateToken(api.deps.Conf, GetTeacherClaims(api.deps.Conf, t))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, Teacher: t})
}

// signOut exists for symmetry with the identity provider interface; tokens
// are stateless so disposal happens client-side.
func (api *authApi) signOut(ctx echo.Context) error {
	return ctx.NoContent(http.StatusNoContent)
}

type SignInResponse struct {
	Token   string          `json:"token"`
	Teacher teacher.Teacher `json:"teacher"`
}
