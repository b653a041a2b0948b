package models

import "time"

// Document is a piece of analytical text the engine extracts chains from.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"date"`
}

// Text returns the matching input: title and body joined by a newline.
func (d *Document) Text() string {
	if d.Title == "" {
		return d.Body
	}
	if d.Body == "" {
		return d.Title
	}
	return d.Title + "\n" + d.Body
}
