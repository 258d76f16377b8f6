package model

// VideoResult is one externally hosted tutorial video found by a lookup.
// Title is a placeholder; real titles are not extracted.
type VideoResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
