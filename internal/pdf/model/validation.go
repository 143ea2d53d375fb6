package model

// Editable element types.
const (
	EditableNumber      = "number"
	EditableReferenceID = "reference_id"
	EditableDate        = "date"
	EditableQuantity    = "quantity"
	EditableReference   = "reference"
	EditableDescription = "description"
	EditableHeading     = "heading"
	EditableText        = "text"
)

var validationRules = map[string]ValidationRule{
	EditableNumber: {
		Pattern: `^\d+\.?\d*$`,
		Message: "Must be a valid number",
	},
	EditableDate: {
		Pattern: `^\d{1,2}[/.-]\d{1,2}[/.-]\d{4}$`,
		Message: "Date required as DD/MM/YYYY",
	},
	EditableQuantity: {
		Pattern: `^\d+\.?\d*\s*(mg|ml|g|%|µg|kg|L)?$`,
		Message: "Quantity with optional unit",
	},
	EditableReferenceID: {
		Pattern: `^[A-Z0-9\-/]+$`,
		Message: "Valid reference identifier",
	},
}

// ValidationFor returns the client-side rule for an editable type. Types
// without a rule accept free text.
func ValidationFor(kind string) ValidationRule {
	if r, ok := validationRules[kind]; ok {
		return r
	}
	return ValidationRule{Pattern: `.*`, Message: "Free text"}
}
