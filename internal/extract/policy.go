// Package extract materializes repository archives under path-safety policies.
package extract

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/huangsam/repoharvest/schema"
)

// Characters rejected by short-path filesystems in any path component.
const windowsDisallowedChars = `<>:"|?*`

// Extensions kept alongside the language sources.
var descriptorExtensions = []string{".xml", ".gradle", ".kts", ".properties"}

// languageExtensions maps a search language onto its source file extension.
var languageExtensions = map[string]string{
	"java":       ".java",
	"kotlin":     ".kt",
	"scala":      ".scala",
	"groovy":     ".groovy",
	"go":         ".go",
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"c#":         ".cs",
	"rust":       ".rs",
}

// PathPolicy bounds what an extraction may write.
type PathPolicy struct {
	MaxPathLen      int
	MaxNameLen      int
	MaxDepth        int
	DisallowedChars string
	Filter          bool                // apply character and extension filters
	AllowedExts     map[string]struct{} // consulted for files when Filter is set
}

// ShortPathPolicy is the filtered policy for filesystems with tight path limits.
func ShortPathPolicy(language string) PathPolicy {
	return PathPolicy{
		MaxPathLen:      240,
		MaxNameLen:      100,
		MaxDepth:        20,
		DisallowedChars: windowsDisallowedChars,
		Filter:          true,
		AllowedExts:     AllowedExtensions(language),
	}
}

// LongPathPolicy extracts the full archive. Only the POSIX path and name
// limits apply; nesting depth is unbounded.
func LongPathPolicy() PathPolicy {
	return PathPolicy{
		MaxPathLen: 4096,
		MaxNameLen: 255,
	}
}

// PolicyFor returns the policy for a resolved mode.
func PolicyFor(mode schema.PathPolicyMode, language string) PathPolicy {
	if mode == schema.ShortPathPolicy {
		return ShortPathPolicy(language)
	}
	return LongPathPolicy()
}

// AllowedExtensions returns the extension allow-list for a language.
func AllowedExtensions(language string) map[string]struct{} {
	exts := make(map[string]struct{}, len(descriptorExtensions)+1)
	lang := strings.ToLower(language)
	if ext, ok := languageExtensions[lang]; ok {
		exts[ext] = struct{}{}
	} else if lang != "" {
		exts["."+lang] = struct{}{}
	}
	for _, ext := range descriptorExtensions {
		exts[ext] = struct{}{}
	}
	return exts
}

// SkipReason reports why an entry must not be written, or "" when it may be.
// name is the slash-separated archive name and target the joined destination path.
func (p PathPolicy) SkipReason(name, target string, isDir bool) string {
	clean := strings.Trim(path.Clean("/"+name), "/")
	if p.MaxPathLen > 0 && utf8.RuneCountInString(target) > p.MaxPathLen {
		return "path too long"
	}
	if p.MaxNameLen > 0 && utf8.RuneCountInString(path.Base(clean)) > p.MaxNameLen {
		return "name too long"
	}
	if p.MaxDepth > 0 && strings.Count(clean, "/")+1 > p.MaxDepth {
		return "too deep"
	}
	if !p.Filter {
		return ""
	}
	if hasDisallowed(clean, p.DisallowedChars) {
		return "disallowed character"
	}
	if !isDir && !p.allowsFile(clean) {
		return "extension not allowed"
	}
	return ""
}

func (p PathPolicy) allowsFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return true
	}
	_, ok := p.AllowedExts[ext]
	return ok
}

func hasDisallowed(name, disallowed string) bool {
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return strings.ContainsAny(name, disallowed)
}
