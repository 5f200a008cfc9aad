package source

// Filter decides whether a work with the given title is kept. A rejected
// work is skipped like a line that failed to parse.
type Filter interface {
	Accept(title string) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(title string) bool

func (f FilterFunc) Accept(title string) bool { return f(title) }

// AcceptAll keeps every record.
var AcceptAll Filter = FilterFunc(func(string) bool { return true })
