package descriptor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Configuration errors. They are wrapped in *ConfigError.
var (
	ErrMissingGeometry = errors.New("geometry URL is required")
	ErrMissingMaterial = errors.New("material URL is required for static models")
	ErrInvalidValue    = errors.New("invalid descriptor value")
)

// ConfigError reports a descriptor that cannot produce a session. It is
// raised before anything is rendered.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "model descriptor: " + e.Err.Error()
	}
	return fmt.Sprintf("model descriptor: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

const (
	notBlankTag = "notblank"
	materialTag = "material_for_static"
	stageTag    = "stage_for_viewport"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names, as the read API spells them.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(ModelDescriptor)
		if d.Kind == KindStatic && strings.TrimSpace(d.MaterialURL) == "" {
			sl.ReportError(d.MaterialURL, "materialUrl", "MaterialURL", materialTag, "")
		}
		if d.Kind != KindAR {
			if d.StageWidth <= 0 {
				sl.ReportError(d.StageWidth, "stageWidth", "StageWidth", stageTag, "")
			}
			if d.StageHeight <= 0 {
				sl.ReportError(d.StageHeight, "stageHeight", "StageHeight", stageTag, "")
			}
		}
	}, ModelDescriptor{})
	return v
}

// Validate checks the descriptor. Every problem found is returned as a
// *ConfigError, joined together.
func (d ModelDescriptor) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{Err: err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) *ConfigError {
	field := strings.TrimPrefix(fe.Namespace(), "ModelDescriptor.")
	switch fe.Tag() {
	case notBlankTag:
		return &ConfigError{Field: field, Err: ErrMissingGeometry}
	case materialTag:
		return &ConfigError{Field: field, Err: ErrMissingMaterial}
	case stageTag:
		return &ConfigError{Field: field, Err: fmt.Errorf("%w: stage size must be positive", ErrInvalidValue)}
	default:
		detail := fe.Tag()
		if fe.Param() != "" {
			detail += "=" + fe.Param()
		}
		return &ConfigError{Field: field, Err: fmt.Errorf("%w: %v fails %s", ErrInvalidValue, fe.Value(), detail)}
	}
}
