// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package extract

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/phishnchips/scamscan/internal/models"
)

var markupPattern = regexp.MustCompile(`(?i)<(html|head|body|div|p|a|br|span|table|td|font|img)[\s>/]`)

// LooksLikeHTML reports whether s appears to be an HTML fragment, such as a
// forwarded e-mail body.
func LooksLikeHTML(s string) bool {
	return markupPattern.MatchString(s)
}

// FromInput extracts from s, parsing it as HTML when it looks like markup.
func FromInput(s string) Entities {
	if LooksLikeHTML(s) {
		return ExtractHTML(s)
	}
	return Extract(s)
}

// ExtractHTML extracts entities from an HTML fragment. The visible text runs
// through the plain-text rules; anchor targets contribute http(s) links and
// mailto: recipients that the text may not show. Unparseable input falls back
// to plain-text extraction.
func ExtractHTML(fragment string) Entities {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		slog.Debug("html parse failed, using plain text rules", "error", err)
		return Extract(fragment)
	}

	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	found := Extract(strings.Join(parts, " "))

	urls := found.URLs
	emails := found.Emails

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)

		switch {
		case strings.HasPrefix(lower, "mailto:"):
			for _, addr := range mailtoRecipients(href) {
				emails = append(emails, models.Entity{Kind: models.EntityEmail, Value: addr, Offset: -1})
			}
		case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
			urls = append(urls, models.Entity{Kind: models.EntityURL, Value: href, Offset: -1})
		}
	})

	return Entities{
		URLs:   dedupe(urls, false),
		Emails: dedupe(emails, true),
	}
}

// collectText gathers text nodes in document order so adjacent block
// elements do not run together.
func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if len(child.Nodes) == 0 {
			return
		}
		switch child.Nodes[0].Type {
		case html.TextNode:
			if t := strings.TrimSpace(child.Nodes[0].Data); t != "" {
				*parts = append(*parts, t)
			}
		case html.ElementNode, html.DocumentNode:
			collectText(child, parts)
		}
	})
}

// mailtoRecipients returns the addresses in a mailto: URI, ignoring headers.
func mailtoRecipients(href string) []string {
	rest := href[len("mailto:"):]
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}

	var out []string
	for _, candidate := range strings.Split(rest, ",") {
		out = append(out, Emails(strings.TrimSpace(candidate))...)
	}
	return out
}
