package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core/content"
)

type contentApi struct {
	svc      *content.Service
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := contentApi{
		svc:      deps.ContentSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/content/:kind", jwt)
	cg.GET("", api.list)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.delete)
	cg.PUT("/:id/active", api.setActive)
}

func contextKind(ctx echo.Context) (content.Kind, error) {
	return content.ParseKind(ctx.Param("kind"))
}

// Handlers

func (api *contentApi) list(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
	if err != nil {
		return err
	}

	items, err := api.svc.List(ctx.Request().Context(), t.ID, kind)
	if err != nil {
		return errors.Wrap(err, "listing content items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contentApi) create(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
	if err != nil {
		return err
	}

	var data content.NewItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err = data.Validate(kind, api.validate); err != nil {
		return err
	}

	item, err := api.svc.Create(ctx.Request().Context(), t.ID, kind, data)
	if err != nil {
		return errors.Wrap(err, "creating content item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
	if err != nil {
		return err
	}

	item, err := api.svc.Get(ctx.Request().Context(), t.ID, kind, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *contentApi) update(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
	if err != nil {
		return err
	}

	var data content.UpdateItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err = data.Validate(kind, api.validate); err != nil {
		return err
	}

	item, err := api.svc.Update(ctx.Request().Context(), t.ID, kind, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *contentApi) delete(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Remove(ctx.Request().Context(), t.ID, kind, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) setActive(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}
	kind, err := contextKind(ctx)
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

	item, err := api.svc.SetActive(ctx.Request().Context(), t.ID, kind, ctx.Param("id"), *data.IsActive)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}
