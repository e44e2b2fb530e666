package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("chatrole", func(fl validator.FieldLevel) bool {
			_, err := ai.ParseRole(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
}

// bindJSON decodes the body into req. Malformed JSON is 10001, a body that
// decodes but fails its binding rules is 10002.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		common.Fail(c, http.StatusBadRequest, 10002, describe(verrs[0]))
		return false
	}
	invalidJSON(c)
	return false
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return field + ": required"
	case "chatrole":
		return field + ": must be one of system, user, assistant"
	case "max":
		return field + ": too long"
	case "email":
		return field + ": invalid email"
	case "min":
		return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
	}
	return field + ": invalid"
}
