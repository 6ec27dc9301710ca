package server

import "strings"

type headerField struct {
	name  string
	value string
}

// Header is an ordered list of header fields. Names are stored exactly as
// they were received and Get/Lookup/Set/Del compare them case-sensitively,
// so "content-length" and "Content-Length" are two different fields. Use
// GetFold when a case-insensitive match is wanted.
type Header struct {
	fields []headerField
}

func (h *Header) index(name string) int {
	for i, f := range h.fields {
		if f.name == name {
			return i
		}
	}
	return -1
}

// Set replaces the value of an existing field in place, or appends a new one.
func (h *Header) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].value = value
		return
	}
	h.fields = append(h.fields, headerField{name: name, value: value})
}

func (h *Header) Lookup(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	if i := h.index(name); i >= 0 {
		return h.fields[i].value, true
	}
	return "", false
}

func (h *Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// GetFold returns the value of the first field whose name matches
// case-insensitively.
func (h *Header) GetFold(name string) string {
	if h == nil {
		return ""
	}
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

func (h *Header) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Each calls fn for every field in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	if h == nil {
		return
	}
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

func (h *Header) Clone() Header {
	if h == nil {
		return Header{}
	}
	fields := make([]headerField, len(h.fields))
	copy(fields, h.fields)
	return Header{fields: fields}
}
