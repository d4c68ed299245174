package detect

import "strings"

// Verdict is the outcome of classifying a request URL.
type Verdict struct {
	Accept bool
	Reason string
}

const (
	ReasonNoTab       = "no_tab"
	ReasonExcluded    = "excluded_segment"
	ReasonUnfetchable = "unfetchable_scheme"
	ReasonExtension   = "extension"
	ReasonKeyword     = "keyword"
	ReasonNoMatch     = "no_match"
)

// ClassifyURL applies the network-body decision policy to a request URL
// owned by tabID.
func (r *Rules) ClassifyURL(tabID, rawURL string) Verdict {
	if tabID == "" {
		return Verdict{Reason: ReasonNoTab}
	}
	if r.IsExcluded(rawURL) {
		return Verdict{Reason: ReasonExcluded}
	}

	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:") {
		return Verdict{Reason: ReasonUnfetchable}
	}

	for _, ext := range r.Extensions {
		if strings.Contains(lower, ext) {
			return Verdict{Accept: true, Reason: ReasonExtension}
		}
	}
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return Verdict{Accept: true, Reason: ReasonKeyword}
		}
	}
	return Verdict{Reason: ReasonNoMatch}
}

// IsExcluded reports whether rawURL looks like a streaming segment.
func (r *Rules) IsExcluded(rawURL string) bool {
	for _, re := range r.Exclude {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// ClassifyContentType reports whether a content-type header value denotes
// a video or a streaming manifest.
func (r *Rules) ClassifyContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return false
	}
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	for _, mt := range r.ManifestTypes {
		if ct == mt {
			return true
		}
	}
	return false
}
