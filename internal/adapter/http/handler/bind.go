package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flowkora/internal/adapter/http/middleware"
	"flowkora/pkg/apperror"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bindJSON decodes and validates the request body, writing a VAL_001
// response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

// bindStrictJSON is bindJSON that also rejects unknown fields. An empty
// body decodes to the zero value.
func bindStrictJSON(c *gin.Context, req interface{}) bool {
	return bindBody(c, req, func(raw []byte) error {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		return dec.Decode(req)
	})
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
// Empty and chunked empty bodies both decode to the zero value.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	return bindBody(c, req, func(raw []byte) error {
		return json.Unmarshal(raw, req)
	})
}

func bindBody(c *gin.Context, req interface{}, decode func([]byte) error) bool {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, validationError(err))
		return false
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := decode(raw); err != nil {
			response.Error(c, validationError(err))
			return false
		}
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

// requireMerchant returns the authenticated merchant or writes a 401.
func requireMerchant(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return uuid.Nil, false
	}
	return id, true
}

// validationError converts binding and decoding failures into VAL_001 with
// per-field details.
func validationError(err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		return apperror.Validation("Invalid request").WithDetails(details)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.Validation("Invalid request").WithDetails(map[string]string{
			typeErr.Field: "has the wrong type",
		})
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.Validation("Request body too large")
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return apperror.Validation("Invalid request").WithDetails(map[string]string{
			strings.Trim(field, `"`): "unknown field",
		})
	}

	if errors.Is(err, io.EOF) {
		return apperror.Validation("Request body is required")
	}
	return apperror.Validation("Malformed JSON body")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eth_addr":
		return "must be a 0x-prefixed 40 hex character address"
	case "https_url":
		return "must be an absolute https URL"
	case "http_url":
		return "must be an absolute http(s) URL"
	case "tx_hash":
		return "must be 0x followed by 64 hex characters"
	case "currency":
		return "must be one of USDC, USDT, DAI"
	case "decimal_amount":
		return "must be a positive decimal with at most 18 fractional digits"
	case "email":
		return "must be a valid email address"
	case "hexadecimal":
		return "must be hexadecimal"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return "is invalid"
}
