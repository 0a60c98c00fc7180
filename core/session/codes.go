package session

import (
	"context"
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/trezcool/ubao/storage/document"
)

// Codes are uniform random over [A-Z0-9] at length 6 (~2.2e9 combinations).
// The store merges blindly by key, so a collision would silently hand one
// teacher's session to another; generation therefore retries until the
// candidate code is unused. Retired codes stay in the store forever and can
// never be picked again.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	maxCodeAttempts = 5
)

var (
	errCodeSpaceExhausted = errors.New("could not generate an unused session code")
	errCodeTaken          = errors.New("session code already taken")
)

// generateCode returns one random candidate code.
func generateCode() (string, error) {
	code := make([]byte, 0, codeLength)
	buf := make([]byte, 1)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		// rejection sampling keeps the distribution uniform over 36 symbols
		if buf[0] >= 252 {
			continue
		}
		code = append(code, codeAlphabet[int(buf[0])%len(codeAlphabet)])
	}
	return string(code), nil
}

// ensureCodeUnused re-verifies a candidate inside the writing transaction;
// the pre-check in newUniqueCode runs outside it and another teacher may
// claim the same code in between.
func ensureCodeUnused(tx document.Tx, code string) error {
	if _, err := tx.Get(publicPath(code)); err == nil {
		return errCodeTaken
	} else if errors.Cause(err) != document.ErrNotFound {
		return errors.Wrap(err, "checking code uniqueness")
	}
	return nil
}

// newUniqueCode generates a code that no session record, active or retired,
// has ever used.
func (svc *Service) newUniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		_, err = svc.store.Get(ctx, publicPath(code))
		if errors.Cause(err) == document.ErrNotFound {
			return code, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking code uniqueness")
		}
		// taken; try again
	}
	return "", errCodeSpaceExhausted
}
