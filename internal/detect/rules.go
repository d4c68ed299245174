package detect

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the heuristics used to decide whether a request is a video.
type Rules struct {
	Exclude       []*regexp.Regexp
	Extensions    []string
	Keywords      []string
	ManifestTypes []string
}

// RulesFile is the optional YAML document that extends the default rules.
type RulesFile struct {
	Exclude       []string `yaml:"exclude"`
	Extensions    []string `yaml:"extensions"`
	Keywords      []string `yaml:"keywords"`
	ManifestTypes []string `yaml:"manifest_types"`
}

// Segment files of HLS/DASH streams. One stream produces hundreds of these
// against a single manifest.
var defaultExcludes = []string{
	`seg-\d+-v\d+-a\d+\.ts$`,
	`chunk-\d+\.ts$`,
	`segment\d+\.ts$`,
	`-\d+\.ts$`,
	`\.ts\?`,
}

var defaultExtensions = []string{
	".mp4", ".webm", ".ogg", ".ogv", ".mov", ".avi", ".mkv",
	".flv", ".wmv", ".m4v", ".3gp", ".m3u8", ".mpd", ".ts",
}

var defaultKeywords = []string{"video", ".m3u8", "stream"}

var defaultManifestTypes = []string{
	"application/x-mpegurl",
	"application/vnd.apple.mpegurl",
	"audio/mpegurl",
	"audio/x-mpegurl",
	"application/dash+xml",
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	r := &Rules{
		Extensions:    append([]string(nil), defaultExtensions...),
		Keywords:      append([]string(nil), defaultKeywords...),
		ManifestTypes: append([]string(nil), defaultManifestTypes...),
	}
	for _, p := range defaultExcludes {
		r.Exclude = append(r.Exclude, regexp.MustCompile(`(?i)`+p))
	}
	return r
}

// LoadRules returns the default rules extended with the entries of the YAML
// file at path. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}
	if err := rules.Extend(file); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Extend appends the entries of f to r.
func (r *Rules) Extend(f RulesFile) error {
	for i, p := range f.Exclude {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return fmt.Errorf("exclude[%d]: %w", i, err)
		}
		r.Exclude = append(r.Exclude, re)
	}
	for _, ext := range f.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.Extensions = append(r.Extensions, ext)
	}
	for _, kw := range f.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			r.Keywords = append(r.Keywords, kw)
		}
	}
	for _, mt := range f.ManifestTypes {
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			r.ManifestTypes = append(r.ManifestTypes, mt)
		}
	}
	return nil
}
