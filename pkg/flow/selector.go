package flow

import (
	"strconv"
	"strings"
)

// Selector describes how to locate elements on the page.
// It is a deferred query: drivers re-resolve it every time it is used.
//
// Exactly one primary strategy should be set (role, placeholder, text,
// labelText, testId or css). HasText/HasNotText narrow the result set,
// Within scopes the search to the matches of another selector and Nth
// picks a single match (-1 for the last one).
type Selector struct {
	Role        string `yaml:"role"`
	Name        string `yaml:"name"` // Accessible name, only meaningful with Role
	Placeholder string `yaml:"placeholder"`
	Text        string `yaml:"text"`
	LabelText   string `yaml:"labelText"`
	TestID      string `yaml:"testId"`
	CSS         string `yaml:"css"`

	// Exact switches name/placeholder/text/label matching from
	// case-insensitive substring to case-sensitive full-string.
	Exact bool `yaml:"exact"`

	HasText    string    `yaml:"hasText"`
	HasNotText string    `yaml:"hasNotText"`
	Nth        *int      `yaml:"nth"`
	Within     *Selector `yaml:"within"`
}

// IsEmpty returns true if no primary strategy is set.
func (s *Selector) IsEmpty() bool {
	return s.Role == "" &&
		s.Placeholder == "" &&
		s.Text == "" &&
		s.LabelText == "" &&
		s.TestID == "" &&
		s.CSS == ""
}

// Strategy returns the primary strategy name and its value.
func (s *Selector) Strategy() (string, string) {
	switch {
	case s.Role != "":
		return "role", s.Role
	case s.Placeholder != "":
		return "placeholder", s.Placeholder
	case s.Text != "":
		return "text", s.Text
	case s.LabelText != "":
		return "label", s.LabelText
	case s.TestID != "":
		return "testId", s.TestID
	case s.CSS != "":
		return "css", s.CSS
	default:
		return "", ""
	}
}

// Describe returns a human-readable description.
func (s *Selector) Describe() string {
	_, value := s.Strategy()
	return value
}

// DescribeQuoted returns a chain like
// css="ul.todo-list" >> role=listitem hasText="Feed the cat".
func (s *Selector) DescribeQuoted() string {
	var b strings.Builder
	if s.Within != nil {
		b.WriteString(s.Within.DescribeQuoted())
		b.WriteString(" >> ")
	}

	kind, value := s.Strategy()
	switch kind {
	case "":
		b.WriteString("<empty>")
	case "role":
		b.WriteString("role=" + value)
		if s.Name != "" {
			b.WriteString("[name=" + strconv.Quote(s.Name) + "]")
		}
	default:
		b.WriteString(kind + "=" + strconv.Quote(value))
	}

	if s.HasText != "" {
		b.WriteString(" hasText=" + strconv.Quote(s.HasText))
	}
	if s.HasNotText != "" {
		b.WriteString(" hasNotText=" + strconv.Quote(s.HasNotText))
	}
	if s.Nth != nil {
		b.WriteString(" nth=" + strconv.Itoa(*s.Nth))
	}
	return b.String()
}

// Clone returns a deep copy of the selector.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	if s.Nth != nil {
		n := *s.Nth
		c.Nth = &n
	}
	c.Within = s.Within.Clone()
	return &c
}

// Map applies fn to every string field, recursing into Within.
// Used for variable expansion.
func (s *Selector) Map(fn func(string) string) *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.Role = fn(s.Role)
	c.Name = fn(s.Name)
	c.Placeholder = fn(s.Placeholder)
	c.Text = fn(s.Text)
	c.LabelText = fn(s.LabelText)
	c.TestID = fn(s.TestID)
	c.CSS = fn(s.CSS)
	c.HasText = fn(s.HasText)
	c.HasNotText = fn(s.HasNotText)
	if s.Nth != nil {
		n := *s.Nth
		c.Nth = &n
	}
	c.Within = s.Within.Map(fn)
	return &c
}
