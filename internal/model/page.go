package model

import (
	"bytes"
	"encoding/json"
)

// Page is one page of a listing as the backend reports it.
//
// Paged endpoints answer { items, totalPages, currentPage } inside the
// envelope's data. Older endpoints answer a bare array, which is read as the
// only page there is.
type Page[T any] struct {
	Items       []T `json:"items"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

func (p *Page[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{Items: items}
		if len(items) > 0 {
			p.TotalPages, p.CurrentPage = 1, 1
		}
		return nil
	}

	var w pageWire[T]
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	*p = Page[T](w)
	return nil
}

// pageWire has Page's layout without its UnmarshalJSON.
type pageWire[T any] struct {
	Items       []T `json:"items"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}
