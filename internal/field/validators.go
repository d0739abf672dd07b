package field

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Validator inspects a field value and returns a finding, or nil.
type Validator func(value any) *ValidationError

func errorf(level Level, code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...), Level: level}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Required reports an empty value. Whitespace-only strings and false
// checkboxes count as empty.
func Required() Validator {
	return func(value any) *ValidationError {
		empty := false
		switch v := value.(type) {
		case nil:
			empty = true
		case string:
			empty = strings.TrimSpace(v) == ""
		case bool:
			empty = !v
		case []map[string]any:
			empty = len(v) == 0
		}
		if empty {
			return errorf(LevelError, "required", "Required")
		}
		return nil
	}
}

// RequiredHTML reports rich text with no text content.
func RequiredHTML() Validator {
	required := Required()
	return func(value any) *ValidationError {
		return required(HTMLText(asString(value)))
	}
}

// MaxLength reports text longer than limit runes.
func MaxLength(limit int) Validator {
	return maxLength(limit, LevelError, func(v any) int { return utf8.RuneCountInString(asString(v)) })
}

// MaxLengthWarn is MaxLength at warning level.
func MaxLengthWarn(limit int) Validator {
	return maxLength(limit, LevelWarn, func(v any) int { return utf8.RuneCountInString(asString(v)) })
}

// MaxLengthHTML reports rich text whose text content exceeds limit runes.
// Markup does not count towards the length.
func MaxLengthHTML(limit int) Validator {
	return maxLength(limit, LevelError, func(v any) int { return utf8.RuneCountInString(HTMLText(asString(v))) })
}

func maxLength(limit int, level Level, length func(any) int) Validator {
	return func(value any) *ValidationError {
		if n := length(value); n > limit {
			return errorf(level, "maxLength", "Too long: %d/%d", n, limit)
		}
		return nil
	}
}

// MinLength reports text shorter than floor runes. Empty values pass; pair
// with Required to reject them.
func MinLength(floor int) Validator {
	return func(value any) *ValidationError {
		n := utf8.RuneCountInString(asString(value))
		if n > 0 && n < floor {
			return errorf(LevelError, "minLength", "Too short: %d/%d", n, floor)
		}
		return nil
	}
}

// OneOf reports a value outside options.
func OneOf(options ...string) Validator {
	return func(value any) *ValidationError {
		s := asString(value)
		for _, o := range options {
			if s == o {
				return nil
			}
		}
		return errorf(LevelError, "oneOf", "Must be one of: %s", strings.Join(options, ", "))
	}
}

// NoControlChars reports control characters other than TAB, LF, VT, FF
// and CR.
func NoControlChars() Validator {
	return func(value any) *ValidationError {
		for _, r := range asString(value) {
			if (r < 0x20 && (r < 0x09 || r > 0x0D)) || r == 0x7F {
				return errorf(LevelError, "controlChars", "Contains invalid control character")
			}
		}
		return nil
	}
}

// Pattern reports values that do not match re, using message as the
// human text.
func Pattern(re *regexp.Regexp, message string) Validator {
	return func(value any) *ValidationError {
		s := asString(value)
		if s != "" && !re.MatchString(s) {
			return errorf(LevelError, "pattern", "%s", message)
		}
		return nil
	}
}

// Warn downgrades a validator's findings to warnings.
func Warn(v Validator) Validator {
	return func(value any) *ValidationError {
		e := v(value)
		if e != nil {
			e.Level = LevelWarn
		}
		return e
	}
}

// HTMLText returns the text content of an HTML fragment. Unparseable
// input is returned as is.
func HTMLText(src string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return src
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}
