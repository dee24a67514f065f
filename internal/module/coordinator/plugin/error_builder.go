package plugin

// ErrorBuilder accumulates validation findings and produces an
// InvalidPaymentInstructionError once at least one has been recorded.
type ErrorBuilder struct {
	dataErrors   map[string]string
	globalErrors []string
}

func NewErrorBuilder() *ErrorBuilder {
	return &ErrorBuilder{dataErrors: make(map[string]string)}
}

// AddDataError records a message against an extended data field. A second
// message for the same field replaces the first.
func (b *ErrorBuilder) AddDataError(field, message string) *ErrorBuilder {
	b.dataErrors[field] = message
	return b
}

// AddGlobalError records a message that applies to the instruction as a
// whole.
func (b *ErrorBuilder) AddGlobalError(message string) *ErrorBuilder {
	b.globalErrors = append(b.globalErrors, message)
	return b
}

func (b *ErrorBuilder) HasErrors() bool {
	return len(b.dataErrors) > 0 || len(b.globalErrors) > 0
}

// Build returns the accumulated findings as an error, or nil when nothing
// was recorded.
func (b *ErrorBuilder) Build() error {
	if !b.HasErrors() {
		return nil
	}
	de := make(map[string]string, len(b.dataErrors))
	for k, v := range b.dataErrors {
		de[k] = v
	}
	ge := make([]string, len(b.globalErrors))
	copy(ge, b.globalErrors)
	return &InvalidPaymentInstructionError{DataErrors: de, GlobalErrors: ge}
}
