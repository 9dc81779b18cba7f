package server

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/zulandar/wallboard/internal/models"
)

var agentCodePattern = regexp.MustCompile(`^[A-Z]\d{3}$`)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// fieldError describes one rejected request field.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func validAgentCode(s string) bool { return agentCodePattern.MatchString(s) }

// registerValidators installs the wallboard's custom tags on gin's validator
// and reports fields by their json or form names.
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(fieldName)

		custom := map[string]func(string) bool{
			"agentcode": validAgentCode,
			"recipient": func(s string) bool {
				return s == models.BroadcastSentinel || validAgentCode(s)
			},
			"agentstatus": func(s string) bool { return models.Status(s).Valid() },
			"msgtype":     func(s string) bool { return models.MessageType(s).Valid() },
			"msgpriority": func(s string) bool { return models.Priority(s).Valid() },
		}
		for tag, check := range custom {
			err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return check(fl.Field().String())
			})
			if err != nil {
				validatorsErr = fmt.Errorf("register %s: %w", tag, err)
				return
			}
		}
	})
	return validatorsErr
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// fieldErrors flattens a binding error into per-field messages.
func fieldErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Field: "body", Message: "malformed request: " + err.Error()}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{
			Field:   fe.Field(),
			Message: describe(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "agentcode":
		return fmt.Sprintf("%s must be an uppercase letter followed by three digits", f)
	case "recipient":
		return fmt.Sprintf("%s must be an agent code or %q", f, models.BroadcastSentinel)
	case "agentstatus":
		names := make([]string, 0, 5)
		for _, s := range models.AllStatuses() {
			names = append(names, string(s))
		}
		return fmt.Sprintf("%s must be one of %s", f, strings.Join(names, ", "))
	case "msgtype":
		return fmt.Sprintf("%s must be one of instruction, notification, alert, info", f)
	case "msgpriority":
		return fmt.Sprintf("%s must be one of low, normal, high, urgent", f)
	}
	return fmt.Sprintf("%s failed %s validation", f, fe.Tag())
}
