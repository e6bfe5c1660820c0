package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

const maxNameLen = 100

var (
	nodeIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	graphNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
)

var (
	engine     *validator.Validate
	translator ut.Translator
)

func init() {
	engine = validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(jsonName)

	locale := en.New()
	translator, _ = ut.New(locale, locale).GetTranslator("en")
	if err := entrans.RegisterDefaultTranslations(engine, translator); err != nil {
		panic(err)
	}

	custom := []struct {
		tag  string
		fn   func(string) bool
		text string
	}{
		{"node_id", IsNodeID, "{0} must be a node id (letters, digits, _ or -)"},
		{"graph_name", IsGraphName, "{0} must be a graph name (lower case, digits, '.', '_' or '-')"},
	}
	for _, c := range custom {
		fn := c.fn
		if err := engine.RegisterValidation(c.tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		if err := registerMessage(c.tag, c.text); err != nil {
			panic(err)
		}
	}
}

func registerMessage(tag, text string) error {
	return engine.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		})
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

// IsNodeID reports whether s is a well-formed node identifier
func IsNodeID(s string) bool {
	return len(s) <= maxNameLen && nodeIDPattern.MatchString(s)
}

// IsGraphName reports whether s is a well-formed graph name
func IsGraphName(s string) bool {
	return len(s) <= maxNameLen && graphNamePattern.MatchString(s)
}

// Tags checks the validate tags of v only
func Tags(v any) error {
	return convert(engine.Struct(v), "")
}

// Struct checks the validate tags of v and then, when they pass, its own
// Validate method.
func Struct(v any) error {
	if err := Tags(v); err != nil {
		return err
	}
	if c, ok := v.(Checker); ok {
		return c.Validate()
	}
	return nil
}

// Var checks a single value against a tag expression such as
// "omitempty,number". field names the value in the returned Errors.
func Var(field string, value any, tag string) error {
	return convert(engine.Var(value, tag), field)
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	out := make(Errors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		name, msg := fe.Field(), fe.Translate(translator)
		if field != "" {
			// Var errors carry no field name, so the message starts with its blank
			name, msg = field, field+msg
		}
		out = append(out, FieldError{Field: name, Value: fe.Value(), Message: msg})
	}
	return out
}
