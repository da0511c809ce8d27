package issue

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

// Form is what a user fills in when reporting by hand.
type Form struct {
	Title       string     `json:"title" validate:"max=256"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Description string     `json:"description" validate:"required,max=65536"`
	Type        ReportType `json:"type" validate:"omitempty,report_type"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("report_type", validateReportType)
	return v
}

func validateReportType(fl validator.FieldLevel) bool {
	return ReportType(fl.Field().String()).Valid()
}

// Validate normalizes the report type and checks the form. The returned
// error lists every invalid field.
func (f *Form) Validate() error {
	if parsed := ParseReportType(string(f.Type)); parsed != "" {
		f.Type = parsed
	}

	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.InvalidArgument(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, validationMessage(fieldError))
	}
	return errs.InvalidArgument(strings.Join(messages, "; "))
}

// Report converts a validated form into a report carrying the given logs.
func (f *Form) Report(jsLogs, nativeLogs string) *Report {
	return &Report{
		Title:       f.Title,
		Email:       f.Email,
		Description: f.Description,
		Type:        f.Type,
		JSLogs:      jsLogs,
		NativeLogs:  nativeLogs,
	}
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "report_type":
		return fmt.Sprintf("%s must be one of bug, suggestion, question, crash", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
