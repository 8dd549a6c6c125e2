package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/librarease/assetgroups/internal/usecase"
)

// ErrorRes is the body of every failed request.
type ErrorRes struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Code    int    `json:"code"`
}

const (
	errInternal    = "internal_error"
	errRateLimited = "rate_limited"
	errHTTP        = "http_error"
)

func statusOf(kind usecase.ErrKind) int {
	switch kind {
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindConflict, usecase.KindConcurrencyConflict:
		return http.StatusConflict
	case usecase.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) ErrorRes {
	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		status := statusOf(uerr.Kind)
		if status == http.StatusInternalServerError {
			return ErrorRes{Error: errInternal, Reason: http.StatusText(status), Code: status}
		}
		return ErrorRes{Error: string(uerr.Kind), Reason: uerr.Message, Code: status}
	}

	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		res := ErrorRes{Error: errHTTP, Reason: fmt.Sprint(herr.Message), Code: herr.Code}
		switch herr.Code {
		case http.StatusBadRequest:
			res.Error = string(usecase.KindValidation)
		case http.StatusNotFound:
			res.Error = string(usecase.KindNotFound)
		case http.StatusTooManyRequests:
			res.Error = errRateLimited
		case http.StatusInternalServerError:
			res.Error = errInternal
		}
		return res
	}

	return ErrorRes{
		Error:   errInternal,
		Reason:  http.StatusText(http.StatusInternalServerError),
		Code:    http.StatusInternalServerError,
	}
}

// errorHandler writes ErrorRes for every error a handler returns.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	res := errorResponse(err)
	if res.Code >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request().Context(), "request failed",
			slog.String("path", c.Path()),
			slog.String("err", err.Error()))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(res.Code)
	} else {
		err = c.JSON(res.Code, res)
	}
	if err != nil {
		s.logger.ErrorContext(c.Request().Context(), "write error response", slog.String("err", err.Error()))
	}
}
