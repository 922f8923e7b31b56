// Web fetch tool specification — fetches a URL and returns readable Markdown.
//
// Maps to: codex-rs/core/src/tools/spec.rs (browser/web-fetch tool definitions),
// grounded on github.com/haowjy/meridian's HTML->Markdown conversion pipeline
// (backend/internal/service/docsystem/converter).
package tools

func init() {
	RegisterSpec(SpecEntry{Name: "web_fetch", Constructor: NewWebFetchToolSpec})
}

// DefaultWebFetchTimeoutMs bounds a single fetch attempt (including one
// WAF-challenge retry) before the activity gives up.
const DefaultWebFetchTimeoutMs = 15_000

// MaxWebFetchCharacters is the hard cap on returned Markdown length.
const MaxWebFetchCharacters = 120_000

// NewWebFetchToolSpec creates the specification for the web_fetch tool.
func NewWebFetchToolSpec() ToolSpec {
	return ToolSpec{
		Name: "web_fetch",
		Description: `Fetch a URL over HTTP and return its main content converted to Markdown. ` +
			`Use this to read documentation, articles, or API references. Output is truncated at ` +
			`120,000 characters. Not a general-purpose browser: JavaScript-rendered content and ` +
			`WAF-gated pages may fail.`,
		Parameters: []ToolParameter{
			{
				Name:        "url",
				Type:        "string",
				Description: "The absolute http(s) URL to fetch.",
				Required:    true,
			},
			{
				Name:        "timeout_ms",
				Type:        "integer",
				Description: "Maximum time to spend fetching, in milliseconds. Default 15000; larger values are not capped.",
				Required:    false,
			},
		},
		DefaultTimeoutMs: DefaultWebFetchTimeoutMs,
	}
}
