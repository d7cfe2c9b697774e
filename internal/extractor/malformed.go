package extractor

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// optionalEnd lists elements whose end tag may be omitted in valid HTML,
// plus those without content.
var optionalEnd = map[atom.Atom]struct{}{
	atom.Html: {}, atom.Head: {}, atom.Body: {}, atom.P: {}, atom.Li: {},
	atom.Dt: {}, atom.Dd: {}, atom.Option: {}, atom.Optgroup: {}, atom.Tr: {},
	atom.Td: {}, atom.Th: {}, atom.Thead: {}, atom.Tbody: {}, atom.Tfoot: {},
	atom.Colgroup: {}, atom.Rb: {}, atom.Rt: {}, atom.Rp: {}, atom.Rtc: {},
	atom.Area: {}, atom.Base: {}, atom.Br: {}, atom.Col: {}, atom.Embed: {},
	atom.Hr: {}, atom.Img: {}, atom.Input: {}, atom.Link: {}, atom.Meta: {},
	atom.Source: {}, atom.Track: {}, atom.Wbr: {},
}

// looksMalformed reports structural problems the tolerant parser would
// silently repair: a missing <html> or <body>, or elements left unclosed.
func looksMalformed(doc string) bool {
	lower := strings.ToLower(doc)
	if !strings.Contains(lower, "<html") || !strings.Contains(lower, "<body") {
		return true
	}

	var open []atom.Atom
	z := html.NewTokenizer(strings.NewReader(doc))

	for {
		switch z.Next() {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return true
			}
			return len(open) > 0
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if _, ok := optionalEnd[a]; !ok {
				open = append(open, a)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if _, ok := optionalEnd[a]; ok {
				continue
			}
			i := len(open) - 1
			for i >= 0 && open[i] != a {
				i--
			}
			if i < 0 {
				continue
			}
			if i != len(open)-1 {
				// Elements opened after the matching start were never closed.
				return true
			}
			open = open[:i]
		case html.SelfClosingTagToken, html.TextToken, html.CommentToken, html.DoctypeToken:
		}
	}
}
