package mock

import (
	"strings"
)

// Filter is the route-selected todo filter.
type Filter string

// Filter values
const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Todo is one item in the fake application.
type Todo struct {
	ID        int
	Title     string
	Completed bool
}

// state is everything the fake TodoMVC page shows.
type state struct {
	loaded   bool // false until the first navigation
	todos    []Todo
	nextID   int
	filter   Filter
	newTodo  string // value of input.new-todo
	editing  int    // id of the todo being edited, 0 when none
	editText string // value of input.edit while editing
	hovered  int    // id of the todo under the pointer, 0 when none
}

func newState() *state {
	return &state{nextID: 1, filter: FilterAll}
}

func (s *state) clone() *state {
	c := *s
	c.todos = append([]Todo(nil), s.todos...)
	return &c
}

func (s *state) index(id int) int {
	for i, t := range s.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// add appends a todo from the new-todo input. Blank input is ignored.
func (s *state) add() {
	title := strings.TrimSpace(s.newTodo)
	if title == "" {
		return
	}
	s.todos = append(s.todos, Todo{ID: s.nextID, Title: title})
	s.nextID++
	s.newTodo = ""
}

func (s *state) toggle(id int) {
	if i := s.index(id); i >= 0 {
		s.todos[i].Completed = !s.todos[i].Completed
	}
}

// toggleAll completes every todo unless all are already completed.
func (s *state) toggleAll() {
	done := !s.allDone()
	for i := range s.todos {
		s.todos[i].Completed = done
	}
}

func (s *state) remove(id int) {
	if i := s.index(id); i >= 0 {
		s.todos = append(s.todos[:i], s.todos[i+1:]...)
	}
	if s.editing == id {
		s.editing = 0
	}
	if s.hovered == id {
		s.hovered = 0
	}
}

func (s *state) clearCompleted() {
	kept := s.todos[:0]
	for _, t := range s.todos {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	s.todos = kept
}

func (s *state) startEdit(id int) {
	if i := s.index(id); i >= 0 {
		s.editing = id
		s.editText = s.todos[i].Title
	}
}

// commitEdit saves the edit. A blank title deletes the todo.
func (s *state) commitEdit() {
	if s.editing == 0 {
		return
	}
	id := s.editing
	s.editing = 0
	title := strings.TrimSpace(s.editText)
	if title == "" {
		s.remove(id)
		return
	}
	if i := s.index(id); i >= 0 {
		s.todos[i].Title = title
	}
}

func (s *state) cancelEdit() {
	s.editing = 0
	s.editText = ""
}

func (s *state) remaining() int {
	n := 0
	for _, t := range s.todos {
		if !t.Completed {
			n++
		}
	}
	return n
}

func (s *state) allDone() bool {
	return len(s.todos) > 0 && s.remaining() == 0
}

func (s *state) visibleTodos() []Todo {
	var out []Todo
	for _, t := range s.todos {
		switch {
		case s.filter == FilterActive && t.Completed:
		case s.filter == FilterCompleted && !t.Completed:
		default:
			out = append(out, t)
		}
	}
	return out
}

// filterFromFragment maps "#/active" style routes to a filter.
func filterFromFragment(fragment string) Filter {
	switch strings.Trim(fragment, "/") {
	case "active":
		return FilterActive
	case "completed":
		return FilterCompleted
	default:
		return FilterAll
	}
}
