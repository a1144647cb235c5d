package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of a VALIDATION_ERROR's details.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"path", "query", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// bind fills in from the JSON body, then from path and query parameters,
// and validates the result. Nothing else reads the request.
func (a *api) bind(r *http.Request, in any) error {
	if r.Body != nil && r.Body != http.NoBody {
		defer r.Body.Close()
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(in)
		if err != nil && !errors.Is(err, io.EOF) {
			return &apiError{
				status:  http.StatusBadRequest,
				code:    CodeInvalidBody,
				message: "request body is not valid JSON: " + err.Error(),
			}
		}
	}

	var bad []FieldError
	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	query := r.URL.Query()
	for i := range t.NumField() {
		f := t.Field(i)
		var raw string
		var name string
		if name = f.Tag.Get("path"); name != "" {
			raw = chi.URLParam(r, name)
		} else if name = f.Tag.Get("query"); name != "" {
			if !query.Has(name) {
				continue
			}
			raw = query.Get(name)
		} else {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			bad = append(bad, FieldError{Field: name, Constraint: "type", Param: v.Field(i).Kind().String()})
		}
	}
	if len(bad) > 0 {
		return validationError(bad)
	}

	err := a.validate.Struct(in)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			bad = append(bad, FieldError{Field: fieldPath(fe), Constraint: fe.Tag(), Param: fe.Param()})
		}
		return validationError(bad)
	}
	return err
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return errors.New("unsupported parameter kind " + f.Kind().String())
	}
	return nil
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	_, rest, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return rest
}

func validationError(fields []FieldError) *apiError {
	return &apiError{
		status:  http.StatusBadRequest,
		code:    CodeValidation,
		message: "request validation failed",
		details: fields,
	}
}

// checkResponse validates an outgoing payload against its validate tags.
func (a *api) checkResponse(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return a.validate.Struct(v.Interface())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 || indirectKind(v.Type().Elem()) != reflect.Struct {
			return nil
		}
		return a.validate.Var(v.Interface(), "dive")
	default:
		return nil
	}
}

func indirectKind(t reflect.Type) reflect.Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind()
}
