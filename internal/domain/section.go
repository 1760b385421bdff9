package domain

import (
	"fmt"
	"strings"
)

// Section types reported by detection.
const (
	SectionTypeSection = "section"
	SectionTypeHeader  = "header"
)

// Section is a title detected on a document page.
type Section struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Type  string `json:"type"`
	Page  int    `json:"page"`
}

// Label renders the section for selection lists.
func (s Section) Label() string {
	level := s.Level
	if level <= 0 {
		level = 1
	}
	typ := s.Type
	if typ == "" {
		typ = SectionTypeSection
	}
	page := s.Page
	if page <= 0 {
		page = 1
	}
	return fmt.Sprintf("%s (Level: %d, Type: %s, Page: %d)", s.Title, level, typ, page)
}

// TitleFromLabel recovers the bare title from a Label string or a quoted title.
func TitleFromLabel(label string) string {
	title := strings.TrimSpace(label)
	if i := strings.Index(title, " (Level:"); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	switch {
	case strings.HasPrefix(title, `"title": "`) && strings.HasSuffix(title, `"`) && len(title) > len(`"title": "`):
		title = title[len(`"title": "`) : len(title)-1]
	case len(title) >= 2 && strings.HasPrefix(title, `"`) && strings.HasSuffix(title, `"`):
		title = title[1 : len(title)-1]
	}
	return title
}
