package checker

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// headingJoiner separates multiple headings of the same level in one cell.
const headingJoiner = " => "

// structureJoiner separates tag names in the HTML structure sequence.
const structureJoiner = ">"

// tagText extracts element text with whitespace collapsed, matching how the
// headings and duplicate checks compare content.
func tagText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// ExtractTitle returns the document title and its length in characters
// (runes, not bytes).
func ExtractTitle(doc *goquery.Document) (string, int) {
	if doc == nil {
		return "", 0
	}
	text := strings.TrimSpace(doc.Find("title").First().Text())
	return text, utf8.RuneCountInString(text)
}

// ExtractDescription returns the meta description and its character length.
func ExtractDescription(doc *goquery.Document) (string, int) {
	if doc == nil {
		return "", 0
	}
	content := strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", ""))
	return content, utf8.RuneCountInString(content)
}

// ParseRobotsMeta reports noindex/nofollow. A directive counts if it appears
// in the X-Robots-Tag response header or in any robots meta tag; the two
// sources are ORed and neither can override the other.
func ParseRobotsMeta(resp *Response, doc *goquery.Document) (noindex, nofollow bool) {
	if resp != nil {
		header := strings.ToLower(resp.Headers.Get("X-Robots-Tag"))
		noindex = strings.Contains(header, "noindex")
		nofollow = strings.Contains(header, "nofollow")
	}
	if doc != nil {
		doc.Find(`meta[name="robots"]`).Each(func(_ int, sel *goquery.Selection) {
			content := strings.ToLower(sel.AttrOr("content", ""))
			noindex = noindex || strings.Contains(content, "noindex")
			nofollow = nofollow || strings.Contains(content, "nofollow")
		})
	}
	return noindex, nofollow
}

// ExtractCanonical returns the first canonical link href, trimmed.
func ExtractCanonical(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(`link[rel~="canonical"]`).First().AttrOr("href", ""))
}

// ExtractHTMLLang returns the lang attribute of the root html tag.
func ExtractHTMLLang(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
}

// CountH1 returns the H1 count and whether any H1 is empty.
func CountH1(doc *goquery.Document) (count int, hasEmpty bool) {
	if doc == nil {
		return 0, false
	}
	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		count++
		if tagText(sel) == "" {
			hasEmpty = true
		}
	})
	return count, hasEmpty
}

// CollectHeadings gathers heading text per level H1-H6 for the levels
// enabled in opts, joining multiple headings with " => ". Disabled levels
// map to the empty string.
func CollectHeadings(doc *goquery.Document, opts CheckOptions) map[string]string {
	levels := []struct {
		col     string
		tag     string
		enabled bool
	}{
		{ColH1, "h1", opts.CollectH1},
		{ColH2, "h2", opts.CollectH2},
		{ColH3, "h3", opts.CollectH3},
		{ColH4, "h4", opts.CollectH4},
		{ColH5, "h5", opts.CollectH5},
		{ColH6, "h6", opts.CollectH6},
	}

	out := make(map[string]string, len(levels))
	for _, level := range levels {
		out[level.col] = ""
		if !level.enabled || doc == nil {
			continue
		}
		var texts []string
		doc.Find(level.tag).Each(func(_ int, sel *goquery.Selection) {
			if text := tagText(sel); text != "" {
				texts = append(texts, text)
			}
		})
		out[level.col] = strings.Join(texts, headingJoiner)
	}
	return out
}

// structureSelector builds the goquery selector for the tag families enabled
// in opts. Empty when nothing is enabled.
func structureSelector(opts CheckOptions) string {
	var tags []string
	if opts.TrackHeadings {
		tags = append(tags, "h1", "h2", "h3", "h4", "h5", "h6")
	}
	if opts.TrackParagraphs {
		tags = append(tags, "p")
	}
	if opts.TrackSemantic {
		tags = append(tags, "main", "section", "article", "header", "footer", "nav", "aside")
	}
	if opts.TrackMedia {
		tags = append(tags, "figure", "figcaption")
	}
	if opts.TrackOther {
		tags = append(tags, "address", "time")
	}
	return strings.Join(tags, ",")
}

// BuildStructure renders the document-order sequence of tracked tag names,
// upper-cased and ">"-joined. Two distinct sentinels separate "no families
// configured" from "families configured but nothing found".
func BuildStructure(doc *goquery.Document, opts CheckOptions) string {
	if doc == nil {
		return MarkNoData
	}
	selector := structureSelector(opts)
	if selector == "" {
		return MarkNoTagsSelected
	}
	var sequence []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		sequence = append(sequence, strings.ToUpper(goquery.NodeName(sel)))
	})
	if len(sequence) == 0 {
		return MarkNoStructure
	}
	return strings.Join(sequence, structureJoiner)
}

// FindHeadingDuplicates reports lower-cased exact-text duplicates for H1, H2
// and H3 independently. Levels without duplicates are omitted from the
// report.
func FindHeadingDuplicates(doc *goquery.Document) string {
	if doc == nil {
		return MarkNoData
	}
	var reports []string
	for _, tag := range []string{"h1", "h2", "h3"} {
		counts := make(map[string]int)
		var order []string
		doc.Find(tag).Each(func(_ int, sel *goquery.Selection) {
			text := strings.ToLower(tagText(sel))
			if text == "" {
				return
			}
			if counts[text] == 0 {
				order = append(order, text)
			}
			counts[text]++
		})
		var dupes []string
		for _, text := range order {
			if counts[text] > 1 {
				dupes = append(dupes, text)
			}
		}
		if len(dupes) > 0 {
			reports = append(reports, strings.ToUpper(tag)+": "+strings.Join(dupes, ", "))
		}
	}
	if len(reports) == 0 {
		return MarkNoDuplicates
	}
	return strings.Join(reports, " | ")
}

// CheckImagesAlt inspects img elements inside body. An alt counts as filled
// only if it is non-whitespace after trimming. The ordered alt list sizes
// the dynamic Alt-N columns.
func CheckImagesAlt(doc *goquery.Document) (alts []string, total, filled int) {
	if doc == nil {
		return nil, 0, 0
	}
	doc.Find("body img").Each(func(_ int, sel *goquery.Selection) {
		total++
		alt := strings.TrimSpace(sel.AttrOr("alt", ""))
		alts = append(alts, alt)
		if alt != "" {
			filled++
		}
	})
	return alts, total, filled
}
