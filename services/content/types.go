package content

import (
	"errors"
	"time"
)

var (
	// ErrUnknownContentType is returned for content types the service does not generate
	ErrUnknownContentType = errors.New("unknown content type")

	// ErrUnknownVariant is returned for variants the content type does not define
	ErrUnknownVariant = errors.New("unknown content variant")
)

// ContentType identifies what kind of copy is generated
type ContentType string

const (
	// TypeMaintenance is the copy shown on the maintenance page
	TypeMaintenance ContentType = "maintenance"

	// TypeNotification is the copy of a broadcast notification
	TypeNotification ContentType = "notification"
)

// Source tells where a result came from
type Source string

const (
	SourceAI       Source = "ai"
	SourceCache    Source = "cache"
	SourceTemplate Source = "template"
)

// DefaultLanguage is used for empty or unsupported languages
const DefaultLanguage = "en"

// variants lists the variants per type; the first one is the default
var variants = map[ContentType][]string{
	TypeMaintenance:  {"scheduled", "emergency", "update"},
	TypeNotification: {"info", "warning", "success"},
}

// languageNames are the supported languages as named in prompts
var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"es": "Spanish",
}

// Request asks for one piece of copy
type Request struct {
	Type     ContentType `json:"type"`
	Variant  string      `json:"variant,omitempty"`
	Language string      `json:"language,omitempty"`
}

// Content is the structured copy. Generated JSON must satisfy the tags.
type Content struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
	Details string `json:"details,omitempty" validate:"max=2000"`
}

// Result is generated or fallback copy plus where it came from
type Result struct {
	Content
	Type        ContentType `json:"type"`
	Variant     string      `json:"variant"`
	Language    string      `json:"language"`
	Source      Source      `json:"source"`
	Provider    string      `json:"provider,omitempty"`
	Model       string      `json:"model,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Types returns the supported content types and their variants
func Types() map[ContentType][]string {
	out := make(map[ContentType][]string, len(variants))
	for t, v := range variants {
		out[t] = append([]string(nil), v...)
	}
	return out
}

// normalize resolves defaults and validates type and variant
func normalize(req Request) (Request, error) {
	known, ok := variants[req.Type]
	if !ok {
		return req, ErrUnknownContentType
	}

	if req.Variant == "" {
		req.Variant = known[0]
	} else {
		found := false
		for _, v := range known {
			if v == req.Variant {
				found = true
				break
			}
		}
		if !found {
			return req, ErrUnknownVariant
		}
	}

	if _, ok := languageNames[req.Language]; !ok {
		req.Language = DefaultLanguage
	}

	return req, nil
}

func cacheKey(req Request) string {
	return "content:" + string(req.Type) + ":" + req.Variant + ":" + req.Language
}
