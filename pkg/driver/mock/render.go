package mock

import (
	"fmt"
	"html"
	"strings"
)

// Title is the document title of the fake application.
const Title = "TodoMVC: Vue"

const hiddenStyle = ` style="display: none"`

// render produces the page markup for s. Elements the fake application
// can act on carry a data-fake-id attribute.
func render(s *state) string {
	if !s.loaded {
		return "<html><head></head><body></body></html>"
	}

	var b strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	w(`<html><head><title>%s</title></head><body>`, html.EscapeString(Title))
	w(`<section class="todoapp">`)
	w(`<header class="header">`)
	w(`<h1>todos</h1>`)
	w(`<input class="new-todo" data-fake-id="new-todo" autofocus autocomplete="off" placeholder="What needs to be done?" value="%s">`,
		html.EscapeString(s.newTodo))
	w(`</header>`)

	empty := len(s.todos) == 0
	w(`<section class="main"%s>`, styleIf(empty))
	w(`<input id="toggle-all" class="toggle-all" type="checkbox" data-fake-id="toggle-all"%s>`, attrIf(s.allDone(), "checked"))
	w(`<label for="toggle-all" data-fake-id="toggle-all-label">Mark all as complete</label>`)
	w(`<ul class="todo-list">`)
	for _, t := range s.visibleTodos() {
		renderTodo(&b, s, t)
	}
	w(`</ul>`)
	w(`</section>`)

	w(`<footer class="footer"%s>`, styleIf(empty))
	left := s.remaining()
	w(`<span class="todo-count"><strong>%d</strong> %s left</span>`, left, pluralize(left))
	w(`<ul class="filters">`)
	for _, f := range []Filter{FilterAll, FilterActive, FilterCompleted} {
		href := "#/"
		if f != FilterAll {
			href += string(f)
		}
		w(`<li><a href="%s" data-fake-id="filter-%s"%s>%s</a></li>`,
			href, f, classIf(s.filter == f, "selected"), strings.ToUpper(string(f[:1]))+string(f[1:]))
	}
	w(`</ul>`)
	if len(s.todos) > left {
		w(`<button class="clear-completed" data-fake-id="clear-completed">Clear completed</button>`)
	}
	w(`</footer>`)
	w(`</section>`)
	w(`<footer class="info"><p>Double-click to edit a todo</p></footer>`)
	w(`</body></html>`)
	return b.String()
}

func renderTodo(b *strings.Builder, s *state, t Todo) {
	classes := []string{"todo"}
	if t.Completed {
		classes = append(classes, "completed")
	}
	editing := s.editing == t.ID
	if editing {
		classes = append(classes, "editing")
	}

	fmt.Fprintf(b, "<li class=\"%s\" data-fake-id=\"todo-%d\">\n", strings.Join(classes, " "), t.ID)
	fmt.Fprintf(b, "<div class=\"view\"%s>\n", styleIf(editing))
	fmt.Fprintf(b, "<input class=\"toggle\" type=\"checkbox\" data-fake-id=\"toggle-%d\"%s>\n", t.ID, attrIf(t.Completed, "checked"))
	fmt.Fprintf(b, "<label data-fake-id=\"label-%d\">%s</label>\n", t.ID, html.EscapeString(t.Title))
	// The destroy button is only displayed while its row is hovered.
	fmt.Fprintf(b, "<button class=\"destroy\" data-fake-id=\"destroy-%d\"%s>×</button>\n", t.ID, styleIf(s.hovered != t.ID))
	b.WriteString("</div>\n")

	value := t.Title
	if editing {
		value = s.editText
	}
	fmt.Fprintf(b, "<input class=\"edit\" type=\"text\" data-fake-id=\"edit-%d\" value=\"%s\"%s>\n",
		t.ID, html.EscapeString(value), styleIf(!editing))
	b.WriteString("</li>\n")
}

func pluralize(n int) string {
	if n == 1 {
		return "item"
	}
	return "items"
}

func styleIf(hidden bool) string {
	if hidden {
		return hiddenStyle
	}
	return ""
}

func attrIf(cond bool, attr string) string {
	if cond {
		return " " + attr
	}
	return ""
}

func classIf(cond bool, class string) string {
	if cond {
		return ` class="` + class + `"`
	}
	return ""
}
