package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core/aigen"
)

type aigenApi struct {
	client   *aigen.Client
	validate *validator.Validate
}

func registerAIGenAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := aigenApi{
		client:   deps.AIClient,
		validate: deps.Validate,
	}
	g.POST("/aigen", api.generate, jwt)
}

// Handlers

func (api *aigenApi) generate(ctx echo.Context) error {
	if _, err := getContextTeacher(ctx); err != nil {
		return err
	}

	var data aigen.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to aigen.Request")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	text, err := api.client.Generate(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, GenerateResponse{Text: text})
}

type GenerateResponse struct {
	Text string `json:"text"`
}
