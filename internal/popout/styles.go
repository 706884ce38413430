package popout

import (
	"net/url"
	"strings"
)

// BaselineCSS makes the mount element fill the viewport on black.
const BaselineCSS = `html, body { margin: 0; padding: 0; width: 100%; height: 100%; background: #000; overflow: hidden; }
#` + MountID + ` { position: fixed; inset: 0; width: 100vw; height: 100vh; background: #000; }`

// bridgeStyles copies the opener's styles into doc and always appends the
// baseline reset. Sheets whose rules cannot be read are skipped. It returns
// how many sheets were skipped.
func bridgeStyles(src StyleSource, doc Document, origin string) (skipped int, err error) {
	if src != nil {
		for _, sheet := range src.StyleSheets() {
			switch {
			case sheet.Href != "" && sameOrigin(origin, sheet.Href):
				if err := doc.AddStylesheetLink(sheet.Href); err != nil {
					return skipped, err
				}
			case sheet.Inline != "":
				if err := doc.AddStyle(sheet.Inline); err != nil {
					return skipped, err
				}
			case sheet.Rules != nil:
				rules, rerr := sheet.Rules()
				if rerr != nil || len(rules) == 0 {
					skipped++
					continue
				}
				if err := doc.AddStyle(strings.Join(rules, "\n")); err != nil {
					return skipped, err
				}
			default:
				skipped++
			}
		}
	}
	return skipped, doc.AddStyle(BaselineCSS)
}

// sameOrigin reports whether href resolves to origin. Relative hrefs are
// same-origin.
func sameOrigin(origin, href string) bool {
	ref, err := url.Parse(href)
	if err != nil {
		return false
	}
	if !ref.IsAbs() && ref.Host == "" {
		return true
	}
	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return false
	}
	scheme := ref.Scheme
	if scheme == "" {
		scheme = base.Scheme
	}
	return strings.EqualFold(scheme, base.Scheme) && strings.EqualFold(ref.Host, base.Host)
}
