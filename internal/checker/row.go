package checker

import "fmt"

// Row maps a column name to its rendered value. The ordered column set for a
// row is derived from CheckOptions via ActiveColumns, never from map
// iteration order.
type Row map[string]string

// Column names for the result schema.
const (
	ColURL            = "URL"
	ColStatusCode     = "Status Code"
	ColRedirect       = "Redirect"
	ColSiteLanguage   = "Site Language"
	ColNoindex        = "Noindex"
	ColNofollow       = "Nofollow"
	ColCanonical      = "Canonical"
	ColTitle          = "Title"
	ColTitleLen       = "Title Length"
	ColDescription    = "Description"
	ColDescLen        = "Description Length"
	ColSitemap        = "Sitemap 200"
	ColRobotsStatus   = "Robots 200"
	ColRobotsDisallow = "Robots Disallow"
	ColRobotsSitemap  = "Robots Sitemap"
	ColNotFoundURL    = "404 Page URL"
	ColNotFoundCode   = "404 Status Code"
	ColNotFoundOK     = "404 Correct"
	ColH1Count        = "H1 Count"
	ColH1             = "H1"
	ColH2             = "H2"
	ColH3             = "H3"
	ColH4             = "H4"
	ColH5             = "H5"
	ColH6             = "H6"
	ColStructure      = "HTML Structure"
	ColHeadingDupes   = "H1/H2/H3 Duplicates"
	ColImgCount       = "Img Count"
	ColAltCount       = "Alt Count"
	ColCMS            = "CMS"
	ColCMSDebug       = "CMS Debug"
)

// Sentinel values written into rows instead of raising errors.
const (
	MarkInvalidAddress = "invalid address"
	MarkNoResponse     = "no response"
	MarkNoData         = "no data"
	MarkYes            = "yes"
	MarkNo             = "no"
	MarkNoDuplicates   = "no duplicates"
	MarkNoTagsSelected = "no tags selected"
	MarkNoStructure    = "no structural elements"
)

// AltColumn returns the name of the n-th image alt column (1-based).
func AltColumn(n int) string {
	return fmt.Sprintf("Alt-%d", n)
}

// ActiveColumns derives the ordered column set from the enabled checks plus
// maxAlts dynamic Alt-N columns. The order is fixed by configuration, not by
// result arrival.
func ActiveColumns(opts CheckOptions, maxAlts int) []string {
	cols := []string{ColURL}

	if opts.StatusCodes {
		cols = append(cols, ColStatusCode)
	}
	if opts.Redirects {
		cols = append(cols, ColRedirect)
	}
	if opts.HTMLLang {
		cols = append(cols, ColSiteLanguage)
	}
	if opts.Indexability {
		cols = append(cols, ColNoindex, ColNofollow, ColCanonical)
	}
	if opts.Titles {
		cols = append(cols, ColTitle, ColTitleLen, ColDescription, ColDescLen)
	}
	if opts.Sitemap {
		cols = append(cols, ColSitemap)
	}
	if opts.Robots {
		cols = append(cols, ColRobotsStatus, ColRobotsDisallow, ColRobotsSitemap)
	}
	if opts.NotFoundProbe {
		cols = append(cols, ColNotFoundURL, ColNotFoundCode, ColNotFoundOK)
	}
	if opts.H1Count {
		cols = append(cols, ColH1Count)
	}
	if opts.CollectH1 {
		cols = append(cols, ColH1)
	}
	if opts.CollectH2 {
		cols = append(cols, ColH2)
	}
	if opts.CollectH3 {
		cols = append(cols, ColH3)
	}
	if opts.CollectH4 {
		cols = append(cols, ColH4)
	}
	if opts.CollectH5 {
		cols = append(cols, ColH5)
	}
	if opts.CollectH6 {
		cols = append(cols, ColH6)
	}
	if opts.HTMLStructure {
		cols = append(cols, ColStructure)
	}
	if opts.HeadingDuplicates {
		cols = append(cols, ColHeadingDupes)
	}
	if opts.Images {
		cols = append(cols, ColImgCount, ColAltCount)
		for i := 1; i <= maxAlts; i++ {
			cols = append(cols, AltColumn(i))
		}
	}
	if opts.CMS {
		cols = append(cols, ColCMS, ColCMSDebug)
	}

	return cols
}

// emptyRow creates a row with every active column blank.
func emptyRow(opts CheckOptions, maxAlts int) Row {
	row := make(Row)
	for _, col := range ActiveColumns(opts, maxAlts) {
		row[col] = ""
	}
	return row
}
