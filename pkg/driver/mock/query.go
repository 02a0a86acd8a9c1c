package mock

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/scenario-runner/pkg/core"
	"github.com/devicelab-dev/scenario-runner/pkg/flow"
)

// resolve evaluates sel against doc the way Playwright locators do:
// primary strategy, then hasText/hasNotText filters, then nth.
func resolve(doc *goquery.Document, sel *flow.Selector) (*goquery.Selection, error) {
	if sel == nil || sel.IsEmpty() {
		return nil, fmt.Errorf("selector has no strategy")
	}

	scope := doc.Find("body")
	if sel.Within != nil {
		parent, err := resolve(doc, sel.Within)
		if err != nil {
			return nil, err
		}
		scope = parent
	}

	matches, err := matchStrategy(scope, sel)
	if err != nil {
		return nil, err
	}

	if sel.HasText != "" {
		matches = matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return matchText(textOf(s), sel.HasText, false)
		})
	}
	if sel.HasNotText != "" {
		matches = matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return !matchText(textOf(s), sel.HasNotText, false)
		})
	}
	if sel.Nth != nil {
		matches = matches.Eq(*sel.Nth)
	}
	return matches, nil
}

func matchStrategy(scope *goquery.Selection, sel *flow.Selector) (*goquery.Selection, error) {
	kind, value := sel.Strategy()
	all := scope.Find("*")

	switch kind {
	case "role":
		return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			if roleOf(s) != value || isHidden(s) {
				return false
			}
			return sel.Name == "" || matchText(accessibleName(s), sel.Name, sel.Exact)
		}), nil

	case "placeholder":
		return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			p, ok := s.Attr("placeholder")
			return ok && matchText(p, value, sel.Exact)
		}), nil

	case "text":
		// Innermost elements whose own text matches.
		return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			if skipText(s) || !matchText(textOf(s), value, sel.Exact) {
				return false
			}
			inner := false
			s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
				if !skipText(c) && matchText(textOf(c), value, sel.Exact) {
					inner = true
					return false
				}
				return true
			})
			return !inner
		}), nil

	case "label":
		return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			if l, ok := s.Attr("aria-label"); ok && matchText(l, value, sel.Exact) {
				return true
			}
			label := labelFor(s)
			return label != nil && matchText(textOf(label), value, sel.Exact)
		}), nil

	case "testId":
		return all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			id, ok := s.Attr("data-testid")
			return ok && id == value
		}), nil

	case "css":
		m, err := cascadia.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid css selector %q: %w", value, err)
		}
		return scope.FindMatcher(m), nil
	}
	return nil, fmt.Errorf("unsupported selector strategy %q", kind)
}

// snapshot converts a selection into element infos.
func snapshot(matches *goquery.Selection) []core.ElementInfo {
	infos := make([]core.ElementInfo, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-fake-id")
		value, _ := s.Attr("value")
		_, checked := s.Attr("checked")
		_, disabled := s.Attr("disabled")
		infos = append(infos, core.ElementInfo{
			ID:      id,
			Tag:     goquery.NodeName(s),
			Text:    textOf(s),
			Value:   value,
			Visible: !isHidden(s),
			Enabled: !disabled,
			Checked: checked,
		})
	})
	return infos
}

// textOf returns whitespace-normalized text content.
func textOf(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// matchText follows Playwright's string matching: case-insensitive
// substring by default, case-sensitive full match when exact.
func matchText(actual, want string, exact bool) bool {
	actual = strings.Join(strings.Fields(actual), " ")
	want = strings.Join(strings.Fields(want), " ")
	if exact {
		return actual == want
	}
	return strings.Contains(strings.ToLower(actual), strings.ToLower(want))
}

func skipText(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "head", "title", "script", "style", "template":
		return true
	}
	return false
}

// isHidden reports whether s or an ancestor is not rendered.
func isHidden(s *goquery.Selection) bool {
	if t, _ := s.Attr("type"); goquery.NodeName(s) == "input" && t == "hidden" {
		return true
	}
	for n := s.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "head", "title", "script", "style", "template":
			return true
		}
		for _, a := range n.Attr {
			if a.Key == "hidden" {
				return true
			}
			if a.Key == "style" && strings.Contains(strings.ReplaceAll(a.Val, " ", ""), "display:none") {
				return true
			}
		}
	}
	return false
}

// roleOf returns the explicit or implicit ARIA role of s.
func roleOf(s *goquery.Selection) string {
	if r, ok := s.Attr("role"); ok {
		return r
	}

	switch tag := goquery.NodeName(s); tag {
	case "li":
		return "listitem"
	case "ul", "ol":
		return "list"
	case "button":
		return "button"
	case "a":
		if _, ok := s.Attr("href"); ok {
			return "link"
		}
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "textarea":
		return "textbox"
	case "input":
		switch t, _ := s.Attr("type"); t {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit", "reset":
			return "button"
		case "", "text", "email", "tel", "url", "search":
			return "textbox"
		}
	case "header", "footer":
		// Landmarks only outside sectioning content.
		if s.ParentsFiltered("article, aside, main, nav, section").Length() > 0 {
			return ""
		}
		if tag == "header" {
			return "banner"
		}
		return "contentinfo"
	case "main":
		return "main"
	case "nav":
		return "navigation"
	}
	return ""
}

// accessibleName is a reduced accname computation: aria-label, associated
// label, name from content for roles that allow it, then placeholder/title.
func accessibleName(s *goquery.Selection) string {
	if l, ok := s.Attr("aria-label"); ok && strings.TrimSpace(l) != "" {
		return l
	}
	if label := labelFor(s); label != nil {
		return textOf(label)
	}
	switch roleOf(s) {
	case "button", "link", "heading", "checkbox", "radio", "tab", "option", "cell":
		if t := textOf(s); t != "" {
			return t
		}
	}
	if p, ok := s.Attr("placeholder"); ok {
		return p
	}
	t, _ := s.Attr("title")
	return t
}

// labelFor returns the <label> associated with a form control.
func labelFor(s *goquery.Selection) *goquery.Selection {
	switch goquery.NodeName(s) {
	case "input", "textarea", "select", "button":
	default:
		return nil
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		root := s.Closest("html")
		if l := root.Find(`label[for="` + id + `"]`); l.Length() > 0 {
			return l.First()
		}
	}
	if l := s.Closest("label"); l.Length() > 0 {
		return l
	}
	return nil
}
