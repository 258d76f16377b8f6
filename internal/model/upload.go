package model

import (
	"path/filepath"
	"strings"
)

// Upload is an in-memory file received from a form.
type Upload struct {
	Filename string
	Data     []byte
}

// BaseName strips any directory component the client sent.
func (u *Upload) BaseName() string {
	name := filepath.Base(strings.ReplaceAll(u.Filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Ext is the lower-cased extension including the dot.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.BaseName()))
}
