package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/session"
)

type sessionApi struct {
	svc      *session.Service
	emailSvc core.EmailService
	conf     *core.Config
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		svc:      deps.SessionSvc,
		emailSvc: deps.EmailSvc,
		conf:     deps.Conf,
		validate: deps.Validate,
	}

	sg := g.Group("/session", jwt)
	sg.GET("", api.retrieve)
	sg.POST("", api.create)
	sg.PUT("/active", api.setActive)
	sg.PUT("/settings", api.updateSettings)
	sg.POST("/regenerate", api.regenerate)
	sg.POST("/share", api.share)
}

// Handlers

func (api *sessionApi) retrieve(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	sess, err := api.svc.Current(ctx.Request().Context(), t.ID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errNoSession
		}
		return errors.Wrap(err, "getting current session")
	}
	return ctx.JSON(http.StatusOK, api.toResponse(sess))
}

func (api *sessionApi) create(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data session.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), t.ID, t.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, api.toResponse(sess))
}

func (api *sessionApi) setActive(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data ActiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActiveRequest")
	}
	if data.IsActive == nil {
		return errRequiredIsActive
	}

	sess, err := api.svc.SetActive(ctx.Request().Context(), t.ID, *data.IsActive)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errNoSession
		}
		return errors.Wrap(err, "toggling session")
	}
	return ctx.JSON(http.StatusOK, api.toResponse(sess))
}

func (api *sessionApi) updateSettings(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data session.SettingsPatch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingsPatch")
	}

	sess, err := api.svc.UpdateSettings(ctx.Request().Context(), t.ID, data)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errNoSession
		}
		return errors.Wrap(err, "updating session settings")
	}
	return ctx.JSON(http.StatusOK, api.toResponse(sess))
}

func (api *sessionApi) regenerate(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	sess, err := api.svc.Regenerate(ctx.Request().Context(), t.ID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errNoSession
		}
		return errors.Wrap(err, "regenerating session code")
	}
	return ctx.JSON(http.StatusOK, api.toResponse(sess))
}

func (api *sessionApi) share(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data ShareRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ShareRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Current(ctx.Request().Context(), t.ID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errNoSession
		}
		return errors.Wrap(err, "getting current session")
	}

	api.emailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: data.Email}},
		Subject:      fmt.Sprintf("%s shared a class board with you", sess.TeacherName),
		TemplateName: "session-share",
		TemplateData: shareEmailData{
			TeacherName: sess.TeacherName,
			ClassName:   sess.ClassName,
			Code:        sess.Code,
			StudentURL:  api.studentURL(sess.Code),
		},
	})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "The board link has been emailed."})
}

func (api *sessionApi) studentURL(code string) string {
	return api.conf.FrontendBaseURL + "/student/" + code
}

// toResponse decorates a Session with its shareable public URL.
func (api *sessionApi) toResponse(sess session.Session) SessionResponse {
	return SessionResponse{Session: sess, StudentURL: api.studentURL(sess.Code)}
}

type (
	SessionResponse struct {
		session.Session
		StudentURL string `json:"student_url"`
	}

	ActiveRequest struct {
		IsActive *bool `json:"is_active"`
	}

	ShareRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	shareEmailData struct {
		TeacherName string
		ClassName   string
		Code        string
		StudentURL  string
	}
)

func (sr *ShareRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}
