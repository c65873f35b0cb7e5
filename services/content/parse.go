package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var errNoJSONObject = errors.New("no JSON object in response")

var validate = validator.New()

// parseContent extracts the JSON object from raw model output. Code fences
// and prose around the object are ignored.
func parseContent(raw string) (Content, error) {
	text := strings.TrimSpace(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Content{}, errNoJSONObject
	}

	var c Content
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return Content{}, fmt.Errorf("decode content: %w", err)
	}

	c.Title = strings.TrimSpace(c.Title)
	c.Message = strings.TrimSpace(c.Message)
	c.Details = strings.TrimSpace(c.Details)

	if err := validate.Struct(c); err != nil {
		return Content{}, fmt.Errorf("invalid content: %w", err)
	}
	return c, nil
}
