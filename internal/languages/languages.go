// Package languages lists the languages offered for interpretation.
package languages

// Language pairs a BCP-47 primary code with a display label.
type Language struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var supported = []Language{
	{Code: "en", Label: "English"},
	{Code: "es", Label: "Spanish"},
	{Code: "ur", Label: "Urdu"},
	{Code: "ar", Label: "Arabic"},
	{Code: "bn", Label: "Bengali"},
	{Code: "fr", Label: "French"},
	{Code: "de", Label: "German"},
	{Code: "hi", Label: "Hindi"},
	{Code: "tl", Label: "Tagalog"},
	{Code: "zh", Label: "Chinese"},
}

// Supported returns a copy of the language list in display order.
func Supported() []Language {
	return append([]Language(nil), supported...)
}

// Label returns the display label for code, or code itself when unknown.
func Label(code string) string {
	for _, l := range supported {
		if l.Code == code {
			return l.Label
		}
	}
	return code
}

func Known(code string) bool {
	for _, l := range supported {
		if l.Code == code {
			return true
		}
	}
	return false
}
