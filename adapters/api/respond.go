package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gonbs/internal/errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respond encodes v before any header is written so an unencodable result
// (a non-finite float) becomes an error response instead of an empty 200.
func (s *Server) respond(c *gin.Context, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(c, errors.Wrap(err, "failed to encode response"))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// writeError maps the error code to an HTTP status
func (s *Server) writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "error", err, "request_id", c.GetString("request_id"))
	}
	if code == "UNKNOWN" {
		code = errors.CodeInternalError
	}
	_ = c.Error(err)
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: err.Error()}})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeShapeMismatch, errors.CodeInvalidParameter, errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeSingularDesign:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// bind decodes the JSON body into dst, capping its size when configured
func (s *Server) bind(c *gin.Context, dst interface{}) error {
	if s.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.InvalidInput("request body too large")
		}
		return errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "invalid JSON body"))
	}
	return nil
}
