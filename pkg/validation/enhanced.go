package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/go-playground/validator/v10"
)

// Validate is the validator instance with the rule editor validations
var Validate *validator.Validate

var (
	nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	edgeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+->[a-zA-Z0-9_.-]+:\d+$`)
)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("node_id", validateNodeID)
	Validate.RegisterValidation("edge_id", validateEdgeID)
	Validate.RegisterValidation("plugin_type", validatePluginType)

	// Register tag name function to use JSON tags for field names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateWithPlayground validates using go-playground/validator
func ValidateWithPlayground(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator errors to our custom format
func formatValidationErrors(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	errs := make(ValidationErrors, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		errs = append(errs, ValidationError{
			Field:   fieldError.Namespace(),
			Value:   fieldError.Value(),
			Message: getErrorMessage(fieldError),
		})
	}
	return errs
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "node_id":
		return "must be a valid node identifier (alphanumeric, dot, underscore, hyphen)"
	case "edge_id":
		return "must be a valid edge identifier (source->target:port)"
	case "plugin_type":
		return "must be a known plugin type"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

// IsNodeID reports whether id may be used as a node identifier.
func IsNodeID(id string) bool {
	return len(id) <= 100 && nodeIDPattern.MatchString(id)
}

func validateNodeID(fl validator.FieldLevel) bool {
	return IsNodeID(fl.Field().String())
}

func validateEdgeID(fl validator.FieldLevel) bool {
	return edgeIDPattern.MatchString(fl.Field().String())
}

func validatePluginType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == string(operator.PluginTypeUnknown) || operator.ParsePluginType(s) != operator.PluginTypeUnknown
}
