package checker

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"sitecheck/internal/logging"
)

// errTruncateLimit caps the diagnostic written into a degraded row.
const errTruncateLimit = 200

// Pipeline runs every enabled check against one URL and assembles the
// result row. One broken URL never aborts the batch: every failure mode
// degrades the affected fields and the row is still produced.
type Pipeline struct {
	fetcher *Fetcher
	cms     *Classifier
	opts    CheckOptions
	logger  *zap.Logger
}

// NewPipeline builds a Pipeline sharing one fetcher across all of a job's
// URLs.
func NewPipeline(fetcher *Fetcher, opts CheckOptions, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher: fetcher,
		cms:     NewClassifier(fetcher, logger),
		opts:    opts,
		logger:  logger,
	}
}

// Run produces one row for the raw URL. Panics from any sub-step are caught
// at this boundary and converted into a degraded row.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (row Row) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("check pipeline panicked",
				zap.String("url", logging.MaskURL(rawURL)),
				zap.Any("panic", rec),
			)
			row = p.degradedRow(rawURL, truncate(fmt.Sprintf("error: %v", rec), errTruncateLimit), "pipeline_error")
		}
	}()
	return p.run(ctx, rawURL)
}

func (p *Pipeline) run(ctx context.Context, rawURL string) Row {
	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		return p.degradedRow(rawURL, MarkInvalidAddress, "invalid_url")
	}

	// First hop without redirects, to observe whether the URL itself
	// redirects.
	first := p.fetcher.Fetch(ctx, normalized, false)
	if first == nil {
		return p.degradedRow(normalized, MarkNoResponse, "no_response_initial")
	}

	isRedirect := IsRedirectStatus(first.StatusCode)
	if isRedirect && !p.opts.FollowRedirectsForChecks {
		row := emptyRow(p.opts, 0)
		row[ColURL] = normalized
		if p.opts.StatusCodes {
			row[ColStatusCode] = strconv.Itoa(first.StatusCode)
		}
		if p.opts.Redirects {
			row[ColRedirect] = first.Headers.Get("Location")
		}
		if p.opts.CMS {
			row[ColCMS] = CMSUnknown
			row[ColCMSDebug] = "redirect_not_followed"
		}
		return row
	}

	// Content fetch with redirects followed. A successful non-redirecting
	// first hop is reused if this one fails.
	final := p.fetcher.Fetch(ctx, normalized, true)
	if final == nil {
		final = first
	}

	var doc *goquery.Document
	if strings.Contains(final.ContentType, "text/html") {
		if parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(final.Body)); err == nil {
			doc = parsed
		}
	}

	var alts []string
	imgCount, altCount := 0, 0
	if p.opts.Images {
		alts, imgCount, altCount = CheckImagesAlt(doc)
	}

	row := emptyRow(p.opts, len(alts))
	row[ColURL] = normalized

	if p.opts.StatusCodes {
		row[ColStatusCode] = strconv.Itoa(first.StatusCode)
	}
	if p.opts.Redirects && isRedirect {
		row[ColRedirect] = first.Headers.Get("Location")
	}
	if p.opts.HTMLLang {
		row[ColSiteLanguage] = ExtractHTMLLang(doc)
	}
	if p.opts.Indexability {
		noindex, nofollow := ParseRobotsMeta(final, doc)
		row[ColNoindex] = yesNo(noindex)
		row[ColNofollow] = yesNo(nofollow)
		row[ColCanonical] = ExtractCanonical(doc)
	}
	if p.opts.Titles {
		title, titleLen := ExtractTitle(doc)
		row[ColTitle] = title
		if titleLen > 0 {
			row[ColTitleLen] = strconv.Itoa(titleLen)
		}
		desc, descLen := ExtractDescription(doc)
		row[ColDescription] = desc
		if descLen > 0 {
			row[ColDescLen] = strconv.Itoa(descLen)
		}
	}

	// Sitemap/robots/404 probes target the post-redirect URL only when the
	// job asked for redirect following; otherwise the normalized input.
	checkBase := normalized
	if isRedirect && p.opts.FollowRedirectsForChecks {
		checkBase = final.FinalURL
	}

	if p.opts.Sitemap {
		row[ColSitemap] = p.checkSitemap(ctx, checkBase)
	}
	if p.opts.Robots {
		status, disallow, sitemap := p.checkRobots(ctx, checkBase)
		row[ColRobotsStatus] = status
		row[ColRobotsDisallow] = disallow
		row[ColRobotsSitemap] = sitemap
	}
	if p.opts.NotFoundProbe {
		probeURL, code, correct := p.checkNotFound(ctx, checkBase)
		row[ColNotFoundURL] = probeURL
		row[ColNotFoundCode] = code
		row[ColNotFoundOK] = correct
	}

	if p.opts.H1Count {
		if doc == nil {
			row[ColH1Count] = MarkNoData
		} else {
			count, _ := CountH1(doc)
			row[ColH1Count] = strconv.Itoa(count)
		}
	}

	for col, text := range CollectHeadings(doc, p.opts) {
		if _, active := row[col]; active {
			row[col] = text
		}
	}

	if p.opts.HTMLStructure {
		row[ColStructure] = BuildStructure(doc, p.opts)
	}
	if p.opts.HeadingDuplicates {
		row[ColHeadingDupes] = FindHeadingDuplicates(doc)
	}
	if p.opts.Images {
		row[ColImgCount] = strconv.Itoa(imgCount)
		row[ColAltCount] = strconv.Itoa(altCount)
		for i, alt := range alts {
			row[AltColumn(i+1)] = alt
		}
	}

	// CMS classification issues its own request so its signals are not
	// skewed by the redirect policy above.
	if p.opts.CMS {
		name, debug := p.cms.Classify(ctx, normalized)
		row[ColCMS] = name
		row[ColCMSDebug] = debug
	}

	return row
}

// degradedRow fills only the URL, the status marker and the CMS fields.
func (p *Pipeline) degradedRow(urlValue, statusMark, cmsDebug string) Row {
	row := emptyRow(p.opts, 0)
	row[ColURL] = urlValue
	if p.opts.StatusCodes {
		row[ColStatusCode] = statusMark
	}
	if p.opts.CMS {
		row[ColCMS] = CMSUnknown
		row[ColCMSDebug] = cmsDebug
	}
	return row
}

func (p *Pipeline) checkSitemap(ctx context.Context, base string) string {
	resp := p.fetcher.Fetch(ctx, strings.TrimRight(base, "/")+"/sitemap.xml", true)
	if resp == nil {
		return MarkNoResponse
	}
	return strconv.Itoa(resp.StatusCode)
}

func (p *Pipeline) checkRobots(ctx context.Context, base string) (status, disallow, sitemap string) {
	resp := p.fetcher.Fetch(ctx, strings.TrimRight(base, "/")+"/robots.txt", true)
	if resp == nil {
		return "", "", ""
	}
	status = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode != 200 {
		return status, "", ""
	}
	body := string(resp.Body)
	var disallows []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < len("disallow:") {
			continue
		}
		if strings.EqualFold(trimmed[:len("disallow:")], "disallow:") {
			if path := strings.TrimSpace(trimmed[len("disallow:"):]); path != "" {
				disallows = append(disallows, path)
			}
		}
	}
	disallow = strings.Join(disallows, " | ")
	sitemap = yesNo(strings.Contains(strings.ToLower(body), "sitemap: "))
	return status, disallow, sitemap
}

func (p *Pipeline) checkNotFound(ctx context.Context, base string) (probeURL, code, correct string) {
	probeURL = strings.TrimRight(base, "/") + "/" + randomToken(5)
	resp := p.fetcher.Fetch(ctx, probeURL, true)
	if resp == nil {
		return MarkNoResponse, "", ""
	}
	return probeURL, strconv.Itoa(resp.StatusCode), yesNo(resp.StatusCode == 404)
}

// randomToken returns 2n hex characters.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}

func yesNo(v bool) string {
	if v {
		return MarkYes
	}
	return MarkNo
}
