package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/librarease/assetgroups/internal/usecase"
)

// bind fills req from path, query and body, then validates it. Both failures
// come back as validation errors.
func (s *Server) bind(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return usecase.ValidationError("invalid_request", bindMessage(err))
	}
	if err := s.validator.Struct(req); err != nil {
		return usecase.ValidationError("invalid_request", err.Error())
	}
	return nil
}

func bindMessage(err error) string {
	var berr *echo.BindingError
	if errors.As(err, &berr) {
		return fmt.Sprintf("invalid value for %s", berr.Field)
	}
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		return fmt.Sprint(herr.Message)
	}
	return err.Error()
}

func (s *Server) healthHandler(ctx echo.Context) error {
	stats := s.server.Health()
	if stats["status"] == "down" {
		return ctx.JSON(http.StatusServiceUnavailable, stats)
	}
	return ctx.JSON(http.StatusOK, stats)
}
