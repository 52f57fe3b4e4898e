// Package rule wraps go-playground/validator under the "rule" tag name and
// shares the instance with gin binding, so request DTOs, configuration and
// service inputs are validated by the same rules.
package rule

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once
)

// slugPattern matches custom share slugs: lowercase alphanumerics and inner dashes, 3-64 chars.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// initValidator reuses the gin engine when possible so binding tags and
// ValidateStruct agree.
func initValidator() {
	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
		}
	}

	if inst == nil {
		inst = validator.New()
	}

	inst.SetTagName("rule")
	_ = inst.RegisterValidation("slug", validateSlug)
	inst.RegisterAlias("signature", "required,min=16,max=128,base64rawurl")
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine returns the shared validator.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation registers a custom tag on the shared validator.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidationErrors maps a field namespace to a readable message.
type ValidationErrors map[string]string

// Error joins the messages in a stable order.
func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for field, msg := range v {
		parts = append(parts, field+": "+msg)
	}

	sort.Strings(parts)

	return strings.Join(parts, "; ")
}

// Errors flattens a validator error into ValidationErrors. Other errors yield nil.
func Errors(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on %q", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed on %q (%s)", fe.Tag(), fe.Param())
		}

		out[fe.Namespace()] = msg
	}

	return out
}

// ValidateStruct validates every rule tag of s.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar validates a single value, e.g. ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias registers a tag alias on the shared validator.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
