// Package metadata derives structural facts from source text: declared
// functions, classes/types, imports, and the package or module name.
//
// Extraction is deliberately best-effort regex matching per language
// family. False negatives are acceptable; Extract never fails, and unknown
// languages yield an empty metadata set.
package metadata

import (
	"regexp"
	"strings"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// rules holds the patterns for one language family. A nil pattern means
// the language has no such construct worth extracting.
type rules struct {
	pkg       *regexp.Regexp
	functions *regexp.Regexp
	classes   *regexp.Regexp
	imports   *regexp.Regexp
}

// extractors is the strategy table keyed by language identifier. Each entry
// is independently testable and extensible without touching the indexer.
var extractors = map[string]rules{
	"Go": {
		pkg:       regexp.MustCompile(`(?m)^package\s+(\w+)`),
		functions: regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),
		classes:   regexp.MustCompile(`(?m)^type\s+(\w+)\s+(?:struct|interface)\b`),
		imports:   regexp.MustCompile(`(?m)^\s*(?:import\s+)?"([^"]+)"`),
	},
	"Python": {
		pkg:       nil,
		functions: regexp.MustCompile(`(?m)^\s*def\s+(\w+)\s*\(`),
		classes:   regexp.MustCompile(`(?m)^\s*class\s+(\w+)\s*[(:]`),
		imports:   regexp.MustCompile(`(?m)^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`),
	},
	"JavaScript": {
		pkg:       nil,
		functions: regexp.MustCompile(`(?m)(?:^|\s)function\s+(\w+)\s*\(|(?:^|\s)(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>)`),
		classes:   regexp.MustCompile(`(?m)(?:^|\s)class\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)(?:from\s+['"]([^'"]+)['"]|require\s*\(\s*['"]([^'"]+)['"]\s*\))`),
	},
	"Java": {
		pkg:       regexp.MustCompile(`(?m)^package\s+([\w.]+)\s*;`),
		functions: regexp.MustCompile(`(?m)(?:public|protected|private|static)\s+[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w,\s]+)?\s*\{`),
		classes:   regexp.MustCompile(`(?m)(?:class|interface|enum|record)\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)^import\s+(?:static\s+)?([\w.*]+)\s*;`),
	},
	"Ruby": {
		pkg:       regexp.MustCompile(`(?m)^\s*module\s+(\w+)`),
		functions: regexp.MustCompile(`(?m)^\s*def\s+([\w?!=]+)`),
		classes:   regexp.MustCompile(`(?m)^\s*class\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
	},
	"Rust": {
		pkg:       regexp.MustCompile(`(?m)^\s*mod\s+(\w+)`),
		functions: regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)`),
		classes:   regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:struct|enum|trait)\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)^\s*use\s+([\w:]+)`),
	},
	"PHP": {
		pkg:       regexp.MustCompile(`(?m)^namespace\s+([\w\\]+)\s*;`),
		functions: regexp.MustCompile(`(?m)function\s+(\w+)\s*\(`),
		classes:   regexp.MustCompile(`(?m)(?:class|interface|trait)\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)^use\s+([\w\\]+)`),
	},
	"C#": {
		pkg:       regexp.MustCompile(`(?m)^\s*namespace\s+([\w.]+)`),
		functions: regexp.MustCompile(`(?m)(?:public|protected|private|internal|static)\s+[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*\{`),
		classes:   regexp.MustCompile(`(?m)(?:class|interface|struct|record)\s+(\w+)`),
		imports:   regexp.MustCompile(`(?m)^\s*using\s+([\w.]+)\s*;`),
	},
}

// TypeScript shares the JavaScript family, with interfaces counted as classes.
func init() {
	ts := extractors["JavaScript"]
	ts.classes = regexp.MustCompile(`(?m)(?:^|\s)(?:class|interface)\s+(\w+)`)
	extractors["TypeScript"] = ts
	extractors["Kotlin"] = extractors["Java"]
}

// Extract derives structural metadata from content for the given language.
// Unknown languages and malformed input yield an empty set, never an error.
func Extract(language, content string) types.StructuralMetadata {
	r, ok := extractors[language]
	if !ok {
		return types.StructuralMetadata{}
	}

	return types.StructuralMetadata{
		Package:   firstMatch(r.pkg, content),
		Functions: joinMatches(r.functions, content),
		Classes:   joinMatches(r.classes, content),
		Imports:   joinMatches(r.imports, content),
	}
}

// Supported reports whether a strategy exists for the language.
func Supported(language string) bool {
	_, ok := extractors[language]
	return ok
}

func firstMatch(re *regexp.Regexp, content string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return firstGroup(m)
}

// joinMatches collects every capture in document order, comma-joined.
// Duplicates are kept as found.
func joinMatches(re *regexp.Regexp, content string) string {
	if re == nil {
		return ""
	}
	var names []string
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		if name := firstGroup(m); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// firstGroup returns the first non-empty capture group; patterns with
// alternations leave all but one group empty.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
