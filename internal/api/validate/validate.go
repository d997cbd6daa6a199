package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/baharkarakas/wallet-engine/internal/money"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// money fields validate as their minor-unit value, so gt=0 etc. work
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return f.Interface().(money.Money).Minor()
	}, money.Money(0))
	return v
}

// Struct checks s against its `validate` tags. The result is nil or Errs.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errs, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ErrField{Field: fe.Field(), Msg: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "too long (max " + fe.Param() + ")"
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "invalid value"
}
