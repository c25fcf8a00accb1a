// Package parser extracts subscriber details from Substack "new subscriber"
// notification emails. It is pure: no I/O, deterministic for the same
// message bytes, and tolerant of malformed or partial HTML.
package parser

import (
	"encoding/base64"
	"regexp"
	"strings"

	"substacksync-backend/internal/subscriber/domain"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/gmail/v1"
)

// notificationDomain is the sender domain of Substack notifications. It also
// excludes Substack's own addresses from the fallback email scan.
const notificationDomain = "substack.com"

const paidMarker = "New paid subscriber"

var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	planPattern       = regexp.MustCompile(`Plan:\s*([^<\n]+)`)
	sourcePattern     = regexp.MustCompile(`Source:\s*([^<\n]+)`)
	newsletterPattern = regexp.MustCompile(`to (.+?)\s*!?$`)
)

// IsCandidate reports whether a message looks like a Substack notification,
// judged by the sender header only. Cheap pre-filter before Parse.
func IsCandidate(msg *gmail.Message) bool {
	from := header(msg, "From")
	return strings.Contains(strings.ToLower(from), notificationDomain)
}

// Parse extracts a subscriber record from a notification message. Returns
// nil when the message has no HTML body or no extractable subscriber email;
// all other fields are optional and simply absent when their markers are
// missing.
func Parse(msg *gmail.Message) *domain.ParsedSubscriber {
	body := htmlBody(msg)
	if body == "" {
		return nil
	}

	sub := &domain.ParsedSubscriber{
		IsPaid: strings.Contains(body, paidMarker),
	}

	if subject := header(msg, "Subject"); subject != "" {
		if m := newsletterPattern.FindStringSubmatch(subject); m != nil {
			sub.NewsletterName = strings.TrimSpace(m[1])
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		doc = nil
	}

	sub.Email = extractEmail(body, doc)
	if sub.Email == "" {
		return nil
	}

	if doc != nil {
		// First heading is the subscriber's display name, unless Substack
		// rendered the email address itself there.
		name := strings.TrimSpace(doc.Find("h3").First().Text())
		if name != "" && name != sub.Email {
			sub.Name = name
		}
	}

	if sub.IsPaid {
		if m := planPattern.FindStringSubmatch(body); m != nil {
			sub.Plan = strings.TrimSpace(m[1])
		}
	}

	if m := sourcePattern.FindStringSubmatch(body); m != nil {
		sub.Source = strings.TrimSpace(m[1])
	}

	return sub
}

// extractEmail prefers the structured mailto anchor and falls back to a
// generic scan that skips addresses on the notification sender's own domain.
func extractEmail(body string, doc *goquery.Document) string {
	if doc != nil {
		var found string
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			if strings.HasPrefix(href, "mailto:") {
				addr := strings.TrimPrefix(href, "mailto:")
				if !strings.Contains(addr, notificationDomain) {
					found = addr
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for _, candidate := range emailPattern.FindAllString(body, -1) {
		if !strings.Contains(candidate, notificationDomain) {
			return candidate
		}
	}

	return ""
}

// htmlBody walks the MIME tree and returns the first text/html part decoded,
// or "" if the message has none.
func htmlBody(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	return findHTMLPart(msg.Payload)
}

func findHTMLPart(part *gmail.MessagePart) string {
	if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
		if decoded := decodeBase64(part.Body.Data); decoded != "" {
			return decoded
		}
	}

	for _, sub := range part.Parts {
		if html := findHTMLPart(sub); html != "" {
			return html
		}
	}

	return ""
}

func decodeBase64(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	// Gmail omits padding on some parts
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

func header(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
