package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"finapi/pkg/apperr"
	"finapi/pkg/logx"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func ok(c *gin.Context, data any) {
	respond(c, http.StatusOK, "", data)
}

// fail writes the error envelope for err. Unclassified errors are logged and
// reported as internal; their text is only exposed in development.
func (s *server) fail(c *gin.Context, err error) {
	e, classified := apperr.As(err)
	if !classified {
		e = apperr.Wrap(apperr.KindInternal, "internal server error", err)
	}
	body := envelope{Success: false, Message: e.Message}
	if len(e.Fields) > 0 {
		body.Errors = e.Fields
	}
	status := e.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logx.FromGin(c, s.log).Error("request failed", logx.FieldError, err.Error())
		_ = c.Error(err)
		if e.Kind == apperr.KindInternal {
			body.Message = "internal server error"
		}
		if s.devErrors && e.Cause != nil {
			body.Errors = e.Cause.Error()
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// bindError turns a gin binding failure into a validation error.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]apperr.FieldError, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return apperr.Validation("validation failed", fields...)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Field(typeErr.Field, "invalid value for "+typeErr.Field)
	}
	if errors.Is(err, io.EOF) {
		return apperr.Validation("request body is required")
	}
	return apperr.Validation("invalid request body")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// useJSONFieldNames makes validation errors report the request's field
// names instead of the Go struct field names.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}
