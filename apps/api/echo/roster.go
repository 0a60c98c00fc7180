package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core/roster"
)

type rosterApi struct {
	svc      *roster.Service
	validate *validator.Validate
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := rosterApi{
		svc:      deps.RosterSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/roster", jwt)
	rg.GET("", api.retrieve)
	rg.PUT("", api.update)
	rg.POST("/pick", api.pick)
	rg.POST("/groups", api.groups)
}

// Handlers

func (api *rosterApi) retrieve(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	r, err := api.svc.Get(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "getting roster")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *rosterApi) update(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data roster.UpdateRoster
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoster")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Put(ctx.Request().Context(), t.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving roster")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *rosterApi) pick(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data PickRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PickRequest")
	}

	students, err := api.svc.Pick(ctx.Request().Context(), t.ID, data.Count)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, PickResponse{Students: students})
}

func (api *rosterApi) groups(ctx echo.Context) error {
	t, err := getContextTeacher(ctx)
	if err != nil {
		return err
	}

	var data GroupsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GroupsRequest")
	}

	groups, err := api.svc.Split(ctx.Request().Context(), t.ID, data.Count)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, GroupsResponse{Groups: groups})
}

type (
	PickRequest struct {
		Count int `json:"count"`
	}
	PickResponse struct {
		Students []string `json:"students"`
	}

	GroupsRequest struct {
		Count int `json:"count"`
	}
	GroupsResponse struct {
		Groups []roster.Group `json:"groups"`
	}
)
