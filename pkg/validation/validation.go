package validation

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vinodismyname/hidash/internal/dataset"
	"github.com/vinodismyname/hidash/internal/filter"
	"github.com/vinodismyname/hidash/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Report fields by their wire names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		// Custom: file path must carry an extension the dataset loader reads
		_ = v.RegisterValidation("dataset_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			return dataset.IsSupported(s)
		})
		// Custom: healthiness index range label from the bucket catalog
		_ = v.RegisterValidation("bucket", func(fl validator.FieldLevel) bool {
			_, ok := filter.LookupBucket(fl.Field().String())
			return ok
		})
		// Custom: upload handles are v4 UUIDs
		_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
			id, err := uuid.Parse(strings.TrimSpace(fl.Field().String()))
			return err == nil && id.Version() == 4
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			// Quick URL-safe base64 precheck
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// of the form "CODE: message". Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "dataset_ext":
				return fmt.Sprintf("UNSUPPORTED_FORMAT: %s must be one of %s", field, strings.Join(dataset.SupportedExtensions, ", "))
			case "bucket":
				return fmt.Sprintf("UNKNOWN_BUCKET: %q is not a range; use one of %s", fe.Value(), strings.Join(filter.BucketLabels(), ", "))
			case "handle":
				return fmt.Sprintf("INVALID_HANDLE: %s is not an upload handle", field)
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart pagination"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			// Fallback generic
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
