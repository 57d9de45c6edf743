package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"flowkora/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var txHashRe = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidations(v)
	}
}

// RegisterValidations installs the custom tags used by the request DTOs.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("eth_addr", validateEthAddress)
	_ = v.RegisterValidation("https_url", validateHTTPSURL)
	_ = v.RegisterValidation("http_url", validateHTTPURL)
	_ = v.RegisterValidation("tx_hash", validateTxHash)
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
}

// fieldName reports fields by their wire name so error details match the
// request body or query string.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// validateEthAddress accepts a 0x-prefixed 20-byte hex address. Empty is
// allowed so optional fields can be cleared.
func validateEthAddress(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	return domain.IsValidWalletAddress(strings.TrimSpace(raw))
}

func validateHTTPSURL(fl validator.FieldLevel) bool {
	return isAbsoluteURL(fl.Field().String(), "https")
}

func validateHTTPURL(fl validator.FieldLevel) bool {
	return isAbsoluteURL(fl.Field().String(), "http", "https")
}

func validateTxHash(fl validator.FieldLevel) bool {
	return txHashRe.MatchString(fl.Field().String())
}

func validateCurrency(fl validator.FieldLevel) bool {
	return domain.Currency(fl.Field().String()).IsValid()
}

// validateDecimalAmount accepts a positive decimal with at most 18
// fractional digits.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && -d.Exponent() <= domain.MaxAmountScale
}

// isAbsoluteURL reports whether raw is empty or an absolute URL with a host
// and one of the given schemes.
func isAbsoluteURL(raw string, schemes ...string) bool {
	if raw == "" {
		return true
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return true
		}
	}
	return false
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Use it only for free-text
// labels; URLs, addresses and signed messages must reach the service as sent.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
