package repository

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// Repository is a catalogued project: where it lives, what it is built with,
// and how many likes it has collected.
//
// Title, URL and Techs hold the JSON a client sent, whatever its type, and are
// echoed back unchanged. Well-formed clients send a string, a string and an
// array of strings.
type Repository struct {
	ID    uuid.UUID
	Title json.RawMessage
	URL   json.RawMessage
	Techs json.RawMessage
	Likes int64
}

var (
	emptyText = json.RawMessage(`""`)
	emptyList = json.RawMessage(`[]`)
)

// Text encodes s as a JSON string value.
func Text(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// TextList encodes items as a JSON array of strings.
func TextList(items ...string) json.RawMessage {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return b
}

// TitleText returns the title when it holds a JSON string.
func (r Repository) TitleText() (string, bool) {
	if len(r.Title) == 0 || r.Title[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Title, &s); err != nil {
		return "", false
	}
	return s, true
}

// withDefaults fills fields the client left out so every record renders
// with the full shape.
func (r Repository) withDefaults() Repository {
	if len(r.Title) == 0 {
		r.Title = emptyText
	}
	if len(r.URL) == 0 {
		r.URL = emptyText
	}
	if len(r.Techs) == 0 {
		r.Techs = emptyList
	}
	return r
}

// clone returns a copy that shares no memory with r.
func (r Repository) clone() Repository {
	r = r.withDefaults()
	r.Title = bytes.Clone(r.Title)
	r.URL = bytes.Clone(r.URL)
	r.Techs = bytes.Clone(r.Techs)
	return r
}
