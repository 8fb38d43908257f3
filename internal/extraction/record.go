package extraction

import "time"

const (
	// NotFound marks a field the classifier found nothing for. Sanitized values
	// never contain '<', so no extracted value can collide with it.
	NotFound = "<not found>"

	// ErrorValue replaces every field when extraction fails.
	ErrorValue = "<error>"

	// FailedRawText replaces the raw OCR text when extraction fails.
	FailedRawText = "text extraction failed"
)

// Field names a semantic slot on a business card
type Field string

const (
	FieldEmail    Field = "email"
	FieldPhone    Field = "phone"
	FieldPosition Field = "position"
	FieldCompany  Field = "company"
	FieldName     Field = "name"
	FieldAddress  Field = "address"
)

// Fields lists every card field in classifier order
var Fields = []Field{FieldEmail, FieldPhone, FieldPosition, FieldCompany, FieldName, FieldAddress}

// Record holds the fields extracted from one business card
type Record struct {
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Position  string    `json:"position"`
	Address   string    `json:"address"`
	RawText   string    `json:"raw_text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord returns a record with every field set to NotFound
func NewRecord(rawText string) *Record {
	return &Record{
		Name:     NotFound,
		Company:  NotFound,
		Phone:    NotFound,
		Email:    NotFound,
		Position: NotFound,
		Address:  NotFound,
		RawText:  rawText,
	}
}

// FailedRecord returns the record used when extraction could not complete
func FailedRecord() *Record {
	return &Record{
		Name:     ErrorValue,
		Company:  ErrorValue,
		Phone:    ErrorValue,
		Email:    ErrorValue,
		Position: ErrorValue,
		Address:  ErrorValue,
		RawText:  FailedRawText,
	}
}

// Get returns the value of a field
func (r *Record) Get(f Field) string {
	switch f {
	case FieldName:
		return r.Name
	case FieldCompany:
		return r.Company
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	case FieldPosition:
		return r.Position
	case FieldAddress:
		return r.Address
	}
	return ""
}

// Set assigns a field value
func (r *Record) Set(f Field, value string) {
	switch f {
	case FieldName:
		r.Name = value
	case FieldCompany:
		r.Company = value
	case FieldPhone:
		r.Phone = value
	case FieldEmail:
		r.Email = value
	case FieldPosition:
		r.Position = value
	case FieldAddress:
		r.Address = value
	}
}

// Has reports whether a field holds a real value
func (r *Record) Has(f Field) bool {
	v := r.Get(f)
	return v != "" && v != NotFound && v != ErrorValue
}

// Failed reports whether the record is the extraction-failure record
func (r *Record) Failed() bool {
	return r.RawText == FailedRawText && r.Name == ErrorValue
}
