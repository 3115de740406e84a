package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sitecheck/internal/logging"
)

// CMS classification outcomes.
const (
	CMSWordPress = "WordPress"
	CMSForge     = "Forge"
	CMSUnknown   = "Unknown"
)

// wordPressThreshold is the minimum number of distinct features required for
// a WordPress verdict. A single generic marker is not enough; two
// independent signals must agree.
const wordPressThreshold = 2

// cmsProbeTimeout bounds the optional secondary endpoint probes.
const cmsProbeTimeout = 5 * time.Second

// minHTMLBytes rejects bodies too small to carry meaningful CMS signals.
const minHTMLBytes = 500

// cmsProbeEndpoints are the well-known paths probed when cheap signals are
// inconclusive. Status 200, 302 and 403 all indicate the path exists.
var cmsProbeEndpoints = []struct {
	path    string
	feature string
}{
	{"/wp-login.php", "endpoint_wp_login"},
	{"/wp-admin/", "endpoint_wp_admin"},
	{"/wp-json/", "endpoint_wp_json"},
}

// wpPathMarkers identify WordPress installation paths in link/script/img
// references.
var wpPathMarkers = []string{"wp-content", "wp-includes", "wp-admin", "wp-login.php", "xmlrpc.php"}

// forgeMarkers are literal body fragments tied to the Forge platform.
var forgeMarkers = []string{"encrypted.php?key=btn_link1", "./styles/tinymce.css"}

// featureSet accumulates distinct classification signals.
type featureSet map[string]struct{}

func (f featureSet) add(name string) {
	f[name] = struct{}{}
}

func (f featureSet) sorted() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isWordPress is the pure decision rule over the accumulated feature set.
func isWordPress(f featureSet) bool {
	return len(f) >= wordPressThreshold
}

// collectBodyFeatures records cheap substring signals from the lower-cased
// body, before any parsing.
func collectBodyFeatures(lowerBody string, f featureSet) {
	if strings.Contains(lowerBody, "wp-content") {
		f.add("wp-content")
	}
	if strings.Contains(lowerBody, "wp-includes") {
		f.add("wp-includes")
	}
	if strings.Contains(lowerBody, "wp-json") || strings.Contains(lowerBody, "/wp/v2/") {
		f.add("wp-json")
	}
	if strings.Contains(lowerBody, "xmlrpc.php") {
		f.add("xmlrpc")
	}
	if strings.Contains(lowerBody, "wp-embed.min.js") || strings.Contains(lowerBody, "wp-emoji-release.min.js") {
		f.add("wp-scripts")
	}
}

// collectDocFeatures records signals that need the parsed document.
func collectDocFeatures(doc *goquery.Document, f featureSet) {
	if doc == nil {
		return
	}

	generator := strings.ToLower(doc.Find(`meta[name="generator"]`).First().AttrOr("content", ""))
	if strings.Contains(generator, "wordpress") {
		f.add("meta_generator")
	}

	doc.Find("link").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.ToLower(sel.AttrOr("href", ""))
		if strings.Contains(href, "api.w.org") || strings.Contains(href, "wp-json") {
			f.add("link_api_w_org")
			return false
		}
		return true
	})

	// One feature regardless of how many elements reference WordPress paths;
	// a page full of wp-content links is still a single signal.
	doc.Find("a,link,script,img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		ref := sel.AttrOr("href", "")
		if ref == "" {
			ref = sel.AttrOr("src", "")
		}
		ref = strings.ToLower(ref)
		if ref == "" {
			return true
		}
		for _, marker := range wpPathMarkers {
			if strings.Contains(ref, marker) {
				f.add("wp_links")
				return false
			}
		}
		return true
	})
}

// collectHeaderFeatures records signals from response headers and cookies.
func collectHeaderFeatures(resp *Response, f featureSet) {
	if resp == nil {
		return
	}
	link := strings.ToLower(resp.Headers.Get("Link"))
	if strings.Contains(link, "wp-json") || strings.Contains(link, "api.w.org") {
		f.add("header_link_wp")
	}
	for _, cookie := range resp.Cookies {
		if strings.HasPrefix(strings.ToLower(cookie.Name), "wordpress_") {
			f.add("wp_cookies")
			return
		}
	}
}

// detectForge returns true when the raw body carries any Forge marker.
func detectForge(body string) bool {
	for _, marker := range forgeMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// Classifier determines the CMS behind a URL from page, header and endpoint
// signals. Best effort: it never returns an error, only a name and a debug
// trail.
type Classifier struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

// NewClassifier builds a Classifier sharing the pipeline's fetcher.
func NewClassifier(fetcher *Fetcher, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{fetcher: fetcher, logger: logger}
}

// Classify inspects the URL and returns the CMS name plus an ordered
// evidence trail joined with " | ".
func (c *Classifier) Classify(ctx context.Context, rawURL string) (string, string) {
	var debug []string

	resp, err := c.fetcher.Do(ctx, rawURL, true, 0)
	if err != nil {
		if isTimeoutErr(err) {
			return CMSUnknown, "timeout"
		}
		debug = append(debug, "connect_error: "+truncate(err.Error(), 100))
		fallback := alternateScheme(rawURL)
		if fallback == "" {
			return CMSUnknown, "connection_failed: " + truncate(err.Error(), 100)
		}
		resp, err = c.fetcher.Do(ctx, fallback, true, 0)
		if err != nil {
			return CMSUnknown, "connection_failed: " + truncate(err.Error(), 100)
		}
		debug = append(debug, fmt.Sprintf("scheme_fallback_ok | status=%d | final=%s", resp.StatusCode, resp.FinalURL))
	} else {
		debug = append(debug, fmt.Sprintf("fetch_ok | status=%d | final=%s", resp.StatusCode, resp.FinalURL))
	}

	if resp.StatusCode >= 400 {
		return CMSUnknown, fmt.Sprintf("http_%d", resp.StatusCode)
	}
	if !strings.Contains(strings.ToLower(resp.ContentType), "text/html") {
		return CMSUnknown, "non_html_content_type: " + strings.ToLower(resp.ContentType)
	}
	body := string(resp.Body)
	debug = append(debug, fmt.Sprintf("html_len=%d", len(body)))
	if len(body) < minHTMLBytes {
		return CMSUnknown, fmt.Sprintf("short_html: %db", len(body))
	}

	features := make(featureSet)
	collectBodyFeatures(strings.ToLower(body), features)

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if docErr == nil {
		collectDocFeatures(doc, features)
	}
	collectHeaderFeatures(resp, features)

	debug = append(debug, fmt.Sprintf("features=%d: %s", len(features), strings.Join(features.sorted(), ", ")))

	if isWordPress(features) {
		return CMSWordPress, strings.Join(debug, " | ")
	}

	// Endpoint probes cost extra requests, so they run only when the cheap
	// signals are inconclusive.
	if added := c.probeEndpoints(ctx, resp.FinalURL, features); added >= 0 {
		debug = append(debug, fmt.Sprintf("network_features=%d", added))
	}
	if isWordPress(features) {
		return CMSWordPress, strings.Join(debug, " | ")
	}

	if detectForge(body) {
		return CMSForge, strings.Join(debug, " | ")
	}

	reason := "no_wp_signals"
	if len(features) > 0 {
		reason = fmt.Sprintf("insufficient_signals: %d", len(features))
	}
	return CMSUnknown, reason + " | " + strings.Join(debug, " | ")
}

// probeEndpoints hits the well-known WordPress paths on the root origin in
// parallel, adding a feature per positive answer. Returns the number of
// features added, or -1 when no origin could be derived.
func (c *Classifier) probeEndpoints(ctx context.Context, finalURL string, features featureSet) int {
	parsed, err := url.Parse(finalURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return -1
	}
	root := parsed.Scheme + "://" + parsed.Host

	hits := make([]bool, len(cmsProbeEndpoints))
	g, probeCtx := errgroup.WithContext(ctx)
	for i, endpoint := range cmsProbeEndpoints {
		g.Go(func() error {
			resp, err := c.fetcher.Do(probeCtx, root+endpoint.path, false, cmsProbeTimeout)
			if err != nil {
				return nil
			}
			switch resp.StatusCode {
			case 200, 302, 403:
				hits[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	added := 0
	for i, hit := range hits {
		if hit {
			features.add(cmsProbeEndpoints[i].feature)
			added++
		}
	}
	if added > 0 {
		c.logger.Debug("cms endpoint probes added features",
			zap.String("url", logging.MaskURL(finalURL)),
			zap.Int("features", added),
		)
	}
	return added
}

// alternateScheme flips https and http, returning "" for anything else.
func alternateScheme(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, "https://"):
		return "http://" + strings.TrimPrefix(rawURL, "https://")
	case strings.HasPrefix(rawURL, "http://"):
		return "https://" + strings.TrimPrefix(rawURL, "http://")
	default:
		return ""
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
