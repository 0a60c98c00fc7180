package teacher

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrInvalidToken = errors.New("invalid identity token")
)

type (
	// TokenVerifier validates a federated sign-in token and extracts the
	// principal it vouches for.
	TokenVerifier interface {
		Verify(ctx context.Context, idToken string) (Teacher, error)
	}

	Service struct {
		verifier TokenVerifier
	}
)

func NewService(verifier TokenVerifier) *Service {
	return &Service{verifier: verifier}
}

// SignIn exchanges a provider ID token for the authenticated Teacher.
func (svc *Service) SignIn(ctx context.Context, req SignInRequest) (Teacher, error) {
	t, err := svc.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		return Teacher{}, ErrInvalidToken
	}
	return t, nil
}
