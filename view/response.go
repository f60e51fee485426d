package view

import (
	"encoding/json"
	"errors"
)

var (
	ErrViewNotFound  = errors.New("view not found")
	ErrInvalidQuery  = errors.New("invalid view query")
	ErrInvalidDesign = errors.New("invalid design document")
)

// Row is one entry of a view result. Reduced rows carry no ID.
type Row struct {
	ID    string          `json:"id,omitempty"`
	Key   any             `json:"key"`
	Value any             `json:"value"`
	Doc   json.RawMessage `json:"doc,omitempty"`
}

// Response is the ordered result of a view query
type Response struct {
	TotalRows int   `json:"total_rows"`
	Rows      []Row `json:"rows"`
}

// Len returns the number of rows in the response
func (r *Response) Len() int {
	return len(r.Rows)
}
