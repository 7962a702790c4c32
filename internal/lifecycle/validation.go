package lifecycle

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"clipshelf/internal/services"
)

// Limits bounds user-supplied clip input.
type Limits struct {
	MaxBytes            int64
	AllowedExtensions   []string
	MaxNameRunes        int
	MaxDescriptionRunes int
}

// clipFields is the validated shape shared by ingest and edit.
type clipFields struct {
	Name        string `json:"name" validate:"required,namelen,singleline"`
	Description string `json:"description" validate:"desclen,printabletext"`
}

type uploadFields struct {
	Filename string `json:"filename" validate:"required,clipext"`
}

func newValidator(limits Limits) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("namelen", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= limits.MaxNameRunes
	})
	_ = v.RegisterValidation("desclen", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= limits.MaxDescriptionRunes
	})
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	_ = v.RegisterValidation("printabletext", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
		}) < 0
	})
	allowed := make(map[string]struct{}, len(limits.AllowedExtensions))
	for _, ext := range limits.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	_ = v.RegisterValidation("clipext", func(fl validator.FieldLevel) bool {
		if len(allowed) == 0 {
			return true
		}
		_, ok := allowed[strings.ToLower(filepath.Ext(fl.Field().String()))]
		return ok
	})
	return v
}

// normalizeText trims surrounding whitespace and applies NFC so visually
// identical names compare and count the same.
func normalizeText(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func (s *Service) validateFields(operation, name, description string) (clipFields, error) {
	fields := clipFields{
		Name:        normalizeText(name),
		Description: normalizeText(description),
	}
	if err := s.validate.Struct(fields); err != nil {
		return clipFields{}, s.validationError(operation, err)
	}
	return fields, nil
}

func (s *Service) validateFilename(filename string) error {
	if err := s.validate.Struct(uploadFields{Filename: strings.TrimSpace(filename)}); err != nil {
		return s.validationError("ingest", err)
	}
	return nil
}

func (s *Service) validationError(operation string, err error) error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return services.Wrap(services.ErrValidation, "lifecycle", operation, err.Error(), nil)
	}
	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		messages = append(messages, s.describeFieldError(fe))
	}
	return services.Wrap(services.ErrValidation, "lifecycle", operation, strings.Join(messages, "; "), nil)
}

func (s *Service) describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "namelen":
		return fmt.Sprintf("%s must be at most %d characters", field, s.limits.MaxNameRunes)
	case "desclen":
		return fmt.Sprintf("%s must be at most %d characters", field, s.limits.MaxDescriptionRunes)
	case "singleline", "printabletext":
		return field + " contains control characters"
	case "clipext":
		return fmt.Sprintf("%s must end in one of %s", field, strings.Join(s.limits.AllowedExtensions, ", "))
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
