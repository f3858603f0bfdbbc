package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
)

type (
	sessionApi struct {
		conf     *core.Config
		svc      *session.Service
		validate *validator.Validate
	}

	VerifyResponse struct {
		OK     bool    `json:"ok"`
		Person string  `json:"person"`
		Score  float64 `json:"score"`
		Token  string  `json:"token"`
	}

	MonitorStatusResponse struct {
		Ready bool `json:"ready"`
	}

	SessionResponse struct {
		session.Snapshot
		Token string `json:"token"`
	}

	RunRequest struct {
		Code string `json:"code" validate:"required"`
	}
)

func (r *RunRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		conf:     deps.Conf,
		svc:      deps.SessionSvc,
		validate: deps.Validate,
	}

	// un-authed endpoints
	g.POST("/verify", api.verify)
	g.GET("/monitor/status", api.monitorStatus)

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.start, tokenKindMiddleware(tokenVerified))

	// detail endpoints
	dg := sg.Group("/:id", sessionMiddleware())
	dg.GET("", api.retrieve)
	dg.GET("/screen", api.screen)
	dg.GET("/violations", api.violations)
	dg.POST("/signals", api.signal)
	dg.POST("/warning/dismiss", api.dismissWarning)
	dg.GET("/problems/:pid", api.problem)
	dg.POST("/select", api.selectProblem)
	dg.POST("/execute", api.execute)
	dg.POST("/run-sample", api.runSample)
	dg.POST("/end", api.end)
}

// Handlers

func (api *sessionApi) verify(ctx echo.Context) error {
	var data session.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Verify(ctx.Request().Context(), data.Image)
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) { // face rejected
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		}
		return errors.Wrap(err, "verifying face")
	}

	token, err := GenerateToken(api.conf, VerifiedClaims(api.conf, res))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, VerifyResponse{OK: true, Person: res.Person, Score: res.Score, Token: token})
}

func (api *sessionApi) monitorStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, MonitorStatusResponse{Ready: api.svc.MonitorReady(ctx.Request().Context())})
}

func (api *sessionApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data session.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	data.VerifiedPerson = claims.Person
	data.VerifyScore = claims.Score
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.Start(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	token, err := GenerateToken(api.conf, SessionClaims(api.conf, snap.Session))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	ctx.Response().Header().Set(core.SessionIDHeader, snap.Session.ID.String())
	return ctx.JSON(http.StatusCreated, SessionResponse{Snapshot: snap, Token: token})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}
	snap, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *sessionApi) screen(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}
	scr, err := api.svc.Screen(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "rendering screen")
	}
	return ctx.JSON(http.StatusOK, scr)
}

func (api *sessionApi) violations(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}
	violations, err := api.svc.QueryViolations(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying violations")
	}
	if violations == nil {
		violations = []session.Violation{}
	}
	return ctx.JSON(http.StatusOK, violations)
}

func (api *sessionApi) signal(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}

	var data integrity.Signal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Signal")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.Signal(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "handling signal")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) dismissWarning(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.DismissWarning(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "dismissing warning")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *sessionApi) problem(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Problem(ctx.Request().Context(), id, ctx.Param("pid"))
	if err != nil {
		return errors.Wrap(err, "getting problem")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *sessionApi) selectProblem(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}

	var data session.SelectProblem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectProblem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	scr, err := api.svc.Select(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "selecting problem")
	}
	return ctx.JSON(http.StatusOK, scr)
}

func (api *sessionApi) execute(ctx echo.Context) error {
	return api.run(ctx, true)
}

func (api *sessionApi) runSample(ctx echo.Context) error {
	return api.run(ctx, false)
}

func (api *sessionApi) run(ctx echo.Context, all bool) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}

	var data RunRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RunRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	scr, err := api.svc.Run(ctx.Request().Context(), id, data.Code, all)
	if err != nil {
		return errors.Wrap(err, "running code")
	}
	return ctx.JSON(http.StatusOK, scr)
}

func (api *sessionApi) end(ctx echo.Context) error {
	id, err := getContextSessionID(ctx)
	if err != nil {
		return err
	}

	var data session.EndSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EndSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.End(ctx.Request().Context(), id, data.Status)
	if err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.JSON(http.StatusOK, sess)
}
