package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
)

const (
	maxBodyBytes = 1 << 20
	notBlankTag  = "notblank"
)

// requestValidator validates decoded request bodies and renders failures in
// English using the JSON field names.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(v, translator)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = v.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " cannot be blank"
		},
	)

	return &requestValidator{validate: v, translator: translator}
}

// decode reads a JSON body into dst and validates it. Failures come back as
// *identity.AuthError so handlers report them like any client error.
func (rv *requestValidator) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badJSON("request body is empty")
		}
		return badJSON(fmt.Sprintf("could not parse request body as JSON: %v", err))
	}
	return rv.check(dst)
}

func (rv *requestValidator) check(dst any) error {
	err := rv.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(rv.translator))
	}
	return &identity.AuthError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "validation_failed",
		Message: strings.Join(msgs, "; "),
	}
}

func badJSON(msg string) error {
	return &identity.AuthError{Status: http.StatusBadRequest, Code: "bad_json", Message: msg}
}
