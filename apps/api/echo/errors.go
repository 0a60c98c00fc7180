package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/aigen"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/roster"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/core/teacher"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// NotFound and Inactive read identically on purpose: the student page
	// must not leak whether a code ever existed.
	errSessionCode = echo.NewHTTPError(http.StatusNotFound, "session code is not valid")

	errNoSession = echo.NewHTTPError(http.StatusNotFound, "no session created yet")

	errGenUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, "generation service not configured")
	errGenFailed      = echo.NewHTTPError(http.StatusBadGateway, "generation request failed")

	errRequiredIsActive = core.NewValidationError(nil, core.FieldError{Field: "is_active", Error: "this field is required"})
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case session.ErrNotFound, session.ErrInactive:
				code = errSessionCode.Code
				message = errSessionCode.Message
			case content.ErrNotFound, content.ErrUnknownKind:
				code = errHttpNotFound.Code
				message = errHttpNotFound.Message
			case teacher.ErrInvalidToken:
				code = errAuthenticationFailed.Code
				message = errAuthenticationFailed.Message
			case roster.ErrEmptyRoster:
				code = http.StatusBadRequest
				message = origErr.Error()
			case aigen.ErrNotConfigured:
				code = errGenUnavailable.Code
				message = errGenUnavailable.Message
			case aigen.ErrGeneration:
				code = errGenFailed.Code
				message = errGenFailed.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var t teacher.Teacher
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					t.ID = claims.Subject
					t.Name = claims.Name
					t.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), t)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
