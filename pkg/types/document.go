package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is one indexable unit: a single source file plus everything
// derived from it during ingestion.
type Document struct {
	ID           string // stable identifier; the absolute file path
	FilePath     string
	FileName     string
	Language     string
	Extension    string
	Size         int64
	LastModified time.Time

	Content  string // raw text, size-capped at ingestion
	Summary  string // short natural-language description from the generative provider
	Metadata StructuralMetadata
}

// StructuralMetadata holds best-effort structural facts extracted from
// source text. Each field is a comma-joined list in extraction order;
// empty string when nothing was found.
type StructuralMetadata struct {
	Package   string
	Functions string
	Classes   string
	Imports   string
}

// Pairs returns the metadata as ordered key/value pairs, including empty
// values, so callers can build stable payloads.
func (m StructuralMetadata) Pairs() [][2]string {
	return [][2]string{
		{"package", m.Package},
		{"functions", m.Functions},
		{"classes", m.Classes},
		{"imports", m.Imports},
	}
}

// IsEmpty reports whether no structural facts were extracted.
func (m StructuralMetadata) IsEmpty() bool {
	return m.Package == "" && m.Functions == "" && m.Classes == "" && m.Imports == ""
}

// languageByExtension maps file extensions to language names used in
// search filters and payloads.
var languageByExtension = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".kt":    "Kotlin",
	".rb":    "Ruby",
	".rs":    "Rust",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".scala": "Scala",
	".sh":    "Shell",
	".sql":   "SQL",
	".html":  "HTML",
	".css":   "CSS",
	".md":    "Markdown",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".toml":  "TOML",
	".xml":   "XML",
}

// LanguageForPath derives a language name from a file path's extension.
// Unknown extensions yield "Text".
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "Text"
}
