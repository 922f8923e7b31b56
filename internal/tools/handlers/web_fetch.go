package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/mfateev/turnctl/internal/tools"
)

// compactUserAgent is sent on the first attempt; many sites gate on UA
// before ever inspecting the rest of the request.
const compactUserAgent = "turnctl-web-fetch/1.0"

// browserUserAgent mimics a desktop browser for the WAF-challenge retry.
const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// wafMarkers are substrings that indicate a Cloudflare (or similar) bot
// challenge page rather than real content.
var wafMarkers = []string{"cf-ray", "__cf_bm", "cf-chl", "checking your browser", "just a moment"}

// spaBootPayload matches inline JSON/state blobs common in single-page-app
// shells that slip past sanitization because they sit in non-script tags.
var spaBootPayload = regexp.MustCompile(`(?is)window\.__[A-Za-z0-9_]*__\s*=\s*\{.*?\};?`)

// WebFetchTool fetches a URL and converts its main content to Markdown.
//
// Maps to: codex-rs/core/src/tools/handlers/web_fetch.rs (http mode only;
// headless-browser fallback is out of scope — see DESIGN.md)
type WebFetchTool struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
	converter *md.Converter
}

// NewWebFetchTool creates a new web fetch tool handler.
func NewWebFetchTool() *WebFetchTool {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &WebFetchTool{
		client:    &http.Client{},
		sanitizer: policy,
		converter: md.NewConverter("", true, nil),
	}
}

// Name returns the tool's name.
func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

// Kind returns ToolKindFunction.
func (t *WebFetchTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

// IsMutating returns false — fetching a URL doesn't modify the environment.
func (t *WebFetchTool) IsMutating(invocation *tools.ToolInvocation) bool {
	return false
}

// Handle fetches the URL and returns sanitized Markdown.
func (t *WebFetchTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	urlArg, ok := invocation.Arguments["url"]
	if !ok {
		return nil, tools.NewValidationError("missing required argument: url")
	}
	url, ok := urlArg.(string)
	if !ok || url == "" {
		return nil, tools.NewValidationError("url must be a non-empty string")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, tools.NewValidationError("url must be an absolute http(s) URL")
	}

	body, status, err := t.fetch(ctx, url, compactUserAgent)
	if err != nil {
		return failedFetch(fmt.Sprintf("fetch failed: %v", err)), nil
	}

	if looksLikeWAFChallenge(status, body) {
		body, status, err = t.fetch(ctx, url, browserUserAgent)
		if err != nil {
			return failedFetch(fmt.Sprintf("fetch failed on retry: %v", err)), nil
		}
		if looksLikeWAFChallenge(status, body) {
			return failedFetch("site returned a bot-challenge page on both attempts; headless browser fallback is not available"), nil
		}
	}

	if status >= 400 {
		return failedFetch(fmt.Sprintf("server returned HTTP %d", status)), nil
	}

	content, err := t.toMarkdown(body)
	if err != nil {
		return failedFetch(fmt.Sprintf("conversion failed: %v", err)), nil
	}

	content = spaBootPayload.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	if len(content) > tools.MaxWebFetchCharacters {
		content = content[:tools.MaxWebFetchCharacters] + "\n…truncated…\n"
	}
	if content == "" {
		content = "(no readable content found at this URL)"
	}

	success := true
	return &tools.ToolOutput{Content: content, Success: &success}, nil
}

// fetch performs a single GET, returning the raw body and status code.
func (t *WebFetchTool) fetch(ctx context.Context, url, userAgent string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	if userAgent == browserUserAgent {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, tools.NewTransientError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10 MiB cap
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// looksLikeWAFChallenge inspects status and body for Cloudflare-style
// bot-challenge markers.
func looksLikeWAFChallenge(status int, body []byte) bool {
	if status != 403 && status != 503 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, marker := range wafMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

// toMarkdown reduces the HTML to <main> when present, sanitizes it, and
// converts the result to Markdown.
func (t *WebFetchTool) toMarkdown(body []byte) (string, error) {
	fragment := extractMain(body)
	sanitized := t.sanitizer.SanitizeBytes(fragment)
	return t.converter.ConvertString(string(sanitized))
}

// extractMain returns the bytes within the first <main> element, or the
// full document if none is found.
func extractMain(body []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return body
	}
	if main := findMain(doc); main != nil {
		var buf bytes.Buffer
		_ = html.Render(&buf, main)
		return buf.Bytes()
	}
	return body
}

func findMain(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "main" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMain(c); found != nil {
			return found
		}
	}
	return nil
}

func failedFetch(reason string) *tools.ToolOutput {
	success := false
	return &tools.ToolOutput{Content: reason, Success: &success}
}
