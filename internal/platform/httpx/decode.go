package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// DecodeJSON decodes and validates a JSON request body into target. Struct
// tags on target drive validator/v10 checks. Returns a KindValidation error
// on any failure so handlers can pass it straight to RespondError.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return shared.NewError(shared.KindValidation, "request body required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		return shared.WithKind(shared.KindValidation, err)
	}
	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return shared.NewError(shared.KindValidation, "invalid field: "+verrs[0].Field())
		}
		return shared.WithKind(shared.KindValidation, err)
	}
	return nil
}

// ValidationErrorf builds a KindValidation error for handler-level checks
// that fall outside struct tags, such as decimal parsing.
func ValidationErrorf(format string, args ...any) error {
	return shared.NewError(shared.KindValidation, fmt.Sprintf(format, args...))
}
