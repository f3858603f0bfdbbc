package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/exam"
	"github.com/trezcool/evaledge/core/session"
	"github.com/trezcool/evaledge/services/rest"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "candidate not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")

	// errorCodes lists the domain errors and the status code they are answered with; the message is the error's.
	errorCodes = []struct {
		err  error
		code int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrUnavailable, http.StatusServiceUnavailable},
		{session.ErrMonitorUnavailable, http.StatusServiceUnavailable},
		{session.ErrSessionEnded, http.StatusConflict},
		{exam.ErrBusy, http.StatusConflict},
		{exam.ErrNoProblem, http.StatusConflict},
	}
)

func errorCode(cause error) (int, bool) {
	for _, ec := range errorCodes {
		if cause == ec.err {
			return ec.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := errorCode(cause); ok {
			code = c
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
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
			case *rest.StatusError: // a backend answered with an error we could not handle
				code = http.StatusBadGateway
				message = origErr.Message
				logger.Error(origErr.Error(), err, contextSession(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				logger.Error(msg, errors.Wrap(err, msg), contextSession(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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

// contextSession returns what the token tells about the session of the request, for error reports.
func contextSession(ctx echo.Context) session.Session {
	var sess session.Session
	if claims, err := getContextClaims(ctx); err == nil {
		sess.Candidate = claims.Person
	}
	if id, err := getContextSessionID(ctx); err == nil {
		sess.ID = id
	}
	return sess
}
