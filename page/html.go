package page

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const (
	attrLetterNumber = "data-letter-number"
	attrLetterStatus = "data-letter-status"
	csrfMetaName     = "csrf-token"
	sidebarID        = "sidebar"
	badgeClass       = "badge"
	colorPrefix      = "bg-"
	iconPrefix       = "bi-"
)

// ParseHTML builds a [MemoryPage] from a server-rendered document.
//
// Tracked elements are those carrying both data-letter-number and
// data-letter-status. When the same letter number appears more than once,
// the first occurrence wins, matching a document-order selector lookup.
// A document without a csrf-token meta tag or a sidebar parses fine; the
// resulting page simply reports them as absent.
func ParseHTML(r io.Reader, path string) (*MemoryPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	p := NewMemoryPage(path)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			visitElement(p, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return p, nil
}

// visitElement records whatever part of the page contract n carries.
func visitElement(p *MemoryPage, n *html.Node) {
	if n.Data == "meta" && attr(n, "name") == csrfMetaName {
		if _, ok := p.CSRFToken(); !ok {
			p.SetCSRFToken(attr(n, "content"))
		}
	}

	if attr(n, "id") == sidebarID {
		p.SetSidebar(true)
	}

	number, hasNumber := lookupAttr(n, attrLetterNumber)
	status, hasStatus := lookupAttr(n, attrLetterStatus)
	if !hasNumber || !hasStatus || number == "" {
		return
	}
	if _, exists := p.Element(number); exists {
		return
	}

	el := Element{LetterNumber: number, Status: status}
	if badge := findBadge(n); badge != nil {
		el.HasBadge = true
		el.BadgeColor = classWithPrefix(badge, colorPrefix)
		el.BadgeIcon = findIcon(badge)
	}
	// duplicates were filtered above, so Add cannot fail here
	_ = p.Add(el)
}

// findBadge returns the first descendant of n whose class list contains "badge".
func findBadge(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if hasClass(c, badgeClass) {
			return c
		}
		if found := findBadge(c); found != nil {
			return found
		}
	}
	return nil
}

// findIcon returns the icon name of the first "bi-*" class below badge.
func findIcon(badge *html.Node) string {
	for c := badge.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if icon := classWithPrefix(c, iconPrefix); icon != "" {
			return icon
		}
		if icon := findIcon(c); icon != "" {
			return icon
		}
	}
	return ""
}

func classWithPrefix(n *html.Node, prefix string) string {
	for _, class := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(class, prefix) && len(class) > len(prefix) {
			return strings.TrimPrefix(class, prefix)
		}
	}
	return ""
}

func hasClass(n *html.Node, want string) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == want {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
