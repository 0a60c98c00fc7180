package teacher

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ubao/core"
)

// Teacher is the identity-provider-issued principal. It is never persisted;
// whatever the provider says at sign-in is the whole truth for the token's
// lifetime.
type Teacher struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// SignInRequest carries the provider-issued ID token.
type SignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

func (r *SignInRequest) Validate(validate *validator.Validate) error {
	r.IDToken = core.CleanString(r.IDToken)
	return validate.Struct(r)
}
