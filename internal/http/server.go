package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rai1001/CulinaryOs/pkg/service"
)

const shutdownTimeout = 10 * time.Second

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByKind = map[string]int{
	"validation":         http.StatusBadRequest,
	"not_found":          http.StatusNotFound,
	"reference":          http.StatusUnprocessableEntity,
	"conflict":           http.StatusConflict,
	"invalid_state":      http.StatusConflict,
	"invalid_transition": http.StatusConflict,
}

// NewServer builds the echo instance serving the planning API.
func NewServer(engine *service.Engine, logger *logrus.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	Register(e, engine)
	return e
}

// StartServer serves the API on port until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, engine *service.Engine, logger *logrus.Logger) error {
	e := NewServer(engine, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting CulinaryOS server on :%s", port)
		errCh <- e.Start(":" + port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down CulinaryOS server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func errorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var (
			status int
			body   errorResponse
		)
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			body = errorResponse{Error: http.StatusText(status), Message: http.StatusText(status)}
			if msg, ok := httpErr.Message.(string); ok {
				body.Message = msg
			}
		} else {
			kind := service.KindOf(err)
			code, ok := statusByKind[kind]
			if !ok {
				code = http.StatusInternalServerError
			}
			status = code
			body = errorResponse{Error: kind, Message: err.Error()}
		}
		if status >= http.StatusInternalServerError {
			logger.Errorf("%s %s failed: %v", c.Request().Method, c.Path(), err)
			body.Message = "internal error"
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Errorf("Failed to write error response: %v", writeErr)
		}
	}
}

func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.WithFields(logrus.Fields{
				"method":   c.Request().Method,
				"path":     c.Path(),
				"status":   c.Response().Status,
				"duration": time.Since(start).String(),
			}).Debug("request")
			return nil
		}
	}
}
