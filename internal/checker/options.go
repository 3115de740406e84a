package checker

// CheckOptions selects which checks run for a job and which columns the
// resulting rows carry. Immutable once the job is created.
type CheckOptions struct {
	StatusCodes       bool `json:"status_codes" mapstructure:"status_codes"`
	Redirects         bool `json:"redirects" mapstructure:"redirects"`
	HTMLLang          bool `json:"html_lang" mapstructure:"html_lang"`
	Indexability      bool `json:"indexability" mapstructure:"indexability"`
	Titles            bool `json:"titles" mapstructure:"titles"`
	Sitemap           bool `json:"sitemap" mapstructure:"sitemap"`
	Robots            bool `json:"robots" mapstructure:"robots"`
	NotFoundProbe     bool `json:"not_found_probe" mapstructure:"not_found_probe"`
	H1Count           bool `json:"h1_count" mapstructure:"h1_count"`
	CollectH1         bool `json:"collect_h1" mapstructure:"collect_h1"`
	CollectH2         bool `json:"collect_h2" mapstructure:"collect_h2"`
	CollectH3         bool `json:"collect_h3" mapstructure:"collect_h3"`
	CollectH4         bool `json:"collect_h4" mapstructure:"collect_h4"`
	CollectH5         bool `json:"collect_h5" mapstructure:"collect_h5"`
	CollectH6         bool `json:"collect_h6" mapstructure:"collect_h6"`
	HTMLStructure     bool `json:"html_structure" mapstructure:"html_structure"`
	HeadingDuplicates bool `json:"heading_duplicates" mapstructure:"heading_duplicates"`
	Images            bool `json:"images" mapstructure:"images"`
	CMS               bool `json:"cms" mapstructure:"cms"`

	// FollowRedirectsForChecks controls whether a redirecting URL is
	// inspected at its destination. Off by default: a redirect is reported
	// as-is without fetching the target.
	FollowRedirectsForChecks bool `json:"follow_redirects_for_checks" mapstructure:"follow_redirects_for_checks"`

	// Tag families counted toward the HTML structure sequence.
	TrackHeadings   bool `json:"track_headings" mapstructure:"track_headings"`
	TrackParagraphs bool `json:"track_paragraphs" mapstructure:"track_paragraphs"`
	TrackSemantic   bool `json:"track_semantic" mapstructure:"track_semantic"`
	TrackMedia      bool `json:"track_media" mapstructure:"track_media"`
	TrackOther      bool `json:"track_other" mapstructure:"track_other"`
}

// DefaultCheckOptions enables every check except redirect following and the
// media/other structure families.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		StatusCodes:       true,
		Redirects:         true,
		HTMLLang:          true,
		Indexability:      true,
		Titles:            true,
		Sitemap:           true,
		Robots:            true,
		NotFoundProbe:     true,
		H1Count:           true,
		CollectH1:         true,
		CollectH2:         true,
		CollectH3:         true,
		CollectH4:         true,
		CollectH5:         true,
		CollectH6:         true,
		HTMLStructure:     true,
		HeadingDuplicates: true,
		Images:            true,
		CMS:               true,
		TrackHeadings:     true,
		TrackParagraphs:   true,
		TrackSemantic:     true,
	}
}

// RuntimeOptions carries per-job execution knobs. Values are clamped
// server-side before use.
type RuntimeOptions struct {
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Retries        int `json:"retries" mapstructure:"retries"`
	Concurrency    int `json:"concurrency" mapstructure:"concurrency"`
}

// Clamp bounds for RuntimeOptions.
const (
	MinTimeoutSeconds = 3
	MaxTimeoutSeconds = 120
	MinRetries        = 0
	MaxRetries        = 5
	MinConcurrency    = 1
	MaxConcurrency    = 10
)

// DefaultRuntimeOptions returns the server defaults.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		TimeoutSeconds: 15,
		Retries:        2,
		Concurrency:    3,
	}
}

// Clamp forces every knob into its safe range. Idempotent.
func (r RuntimeOptions) Clamp() RuntimeOptions {
	r.TimeoutSeconds = clampInt(r.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	r.Retries = clampInt(r.Retries, MinRetries, MaxRetries)
	r.Concurrency = clampInt(r.Concurrency, MinConcurrency, MaxConcurrency)
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
