package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/core/student"
)

// studentApi serves the anonymous read-only endpoints; no JWT here.
type studentApi struct {
	resolver *student.Resolver
	logger   core.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func registerStudentAPI(g *echo.Group, deps ServerDeps) {
	api := studentApi{
		resolver: deps.Resolver,
		logger:   deps.Logger,
		validate: deps.Validate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the student page is served from a different origin than the API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	sg := g.Group("/student")
	sg.GET("/:code", api.load)
	sg.GET("/:code/live", api.live)
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
)

// cleanCode normalizes what the student typed and rejects anything that can
// never be a code before the cache or store is touched. Malformed input gets
// the same answer as an unknown code.
func (api *studentApi) cleanCode(raw string) (string, error) {
	code := strings.ToUpper(core.CleanString(raw))
	if err := api.validate.Var(code, "sessioncode"); err != nil {
		return "", session.ErrNotFound
	}
	return code, nil
}

// Handlers

func (api *studentApi) load(ctx echo.Context) error {
	code, err := api.cleanCode(ctx.Param("code"))
	if err != nil {
		return err
	}
	bundle, err := api.resolver.Load(ctx.Request().Context(), code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bundle)
}

// live upgrades to a websocket and pushes a fresh bundle on every workspace
// change. The connection closes when the session stops resolving as active.
func (api *studentApi) live(ctx echo.Context) error {
	code, err := api.cleanCode(ctx.Param("code"))
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	bundles, cancel, err := api.resolver.Watch(reqCtx, code)
	if err != nil {
		return err
	}
	defer cancel()

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return err // Upgrade already replied with an HTTP error
	}
	defer conn.Close()

	// drain client frames so ping/pong and close handshakes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	pings := time.NewTicker(wsPingPeriod)
	defer pings.Stop()

	for {
		select {
		case bundle, ok := <-bundles:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err = conn.WriteJSON(bundle); err != nil {
				return nil
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-reqCtx.Done():
			return nil
		}
	}
}
