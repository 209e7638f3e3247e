package formschema

import (
	"regexp"
	"strings"
	"time"
)

// Format rule names. They appear in validation reasons as "format:<rule>".
const (
	FormatEmail = "email"
	FormatPhone = "phone"
	FormatSSN   = "ssn"
	FormatDate  = "date"
	FormatZip   = "zip"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	ssnRe   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	zipRe   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

var maskFormats = map[string]string{
	"###-##-####":    FormatSSN,
	"(###) ###-####": FormatPhone,
	"#####":          FormatZip,
	"#####-####":     FormatZip,
}

// FormatRule returns the format rule applied to the field's answers, or ""
// when the field has none. The field type decides first; otherwise the
// pattern hint and then the mask select the rule.
func FormatRule(f FieldDefinition) string {
	switch f.Type {
	case TypeEmail:
		return FormatEmail
	case TypePhone:
		return FormatPhone
	case TypeDate:
		return FormatDate
	case TypeText:
	default:
		return ""
	}
	switch p := strings.ToLower(strings.TrimSpace(f.Pattern)); p {
	case FormatEmail, FormatPhone, FormatSSN, FormatDate, FormatZip:
		return p
	}
	return maskFormats[f.Mask]
}

// CheckFormat reports whether value satisfies rule. Empty values pass; the
// required check handles them.
func CheckFormat(rule, value string) bool {
	if value == "" {
		return true
	}
	switch rule {
	case FormatEmail:
		return emailRe.MatchString(value)
	case FormatPhone:
		return phoneRe.MatchString(value)
	case FormatSSN:
		return ssnRe.MatchString(value)
	case FormatZip:
		return zipRe.MatchString(value)
	case FormatDate:
		return validDate(value)
	}
	return true
}

func validDate(v string) bool {
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, v)
	return err == nil
}
