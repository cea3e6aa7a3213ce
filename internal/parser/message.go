package parser

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blockedby/tchan/internal/models"
)

// Page is the result of extracting a single preview page.
type Page struct {
	// Messages are ordered newest first.
	Messages []models.ChannelMessage

	// Truncated is set when a "no messages found" placeholder stopped the
	// extraction. Telegram renders it when it throttles a client, so the
	// page says nothing about whether history really ended.
	Truncated bool
}

// ParseMessages extracts every message of a preview page. pageURL is the
// address the page was fetched from and is used to resolve relative links.
func ParseMessages(doc *goquery.Document, pageURL string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &StructureError{Element: "page url", Err: err}
	}

	nodes := doc.Find(`div[class*="tgme_widget_message_wrap"]`)
	page := &Page{Messages: make([]models.ChannelMessage, 0, nodes.Length())}

	// the page lists messages newest last; walk backwards so records come
	// out in the same order the pagination controller consumes pages
	for i := nodes.Length() - 1; i >= 0; i-- {
		node := nodes.Eq(i)
		if node.Find(`div[class*="tme_no_messages_found"]`).Length() > 0 {
			page.Truncated = true
			break
		}

		msg, err := parseMessage(node, base)
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, *msg)
	}

	return page, nil
}

// NextPageURL returns the resolved "older messages" link of a page, or ""
// when the page has none.
func NextPageURL(doc *goquery.Document, pageURL string) (string, error) {
	href, ok := doc.Find(`link[rel="prev"]`).First().Attr("href")
	if !ok {
		return "", nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", &StructureError{Element: "page url", Err: err}
	}
	return resolveURL(base, href), nil
}

func parseMessage(node *goquery.Selection, base *url.URL) (*models.ChannelMessage, error) {
	post, ok := node.Find("div[data-post]").First().Attr("data-post")
	if !ok {
		return nil, &StructureError{Element: "data-post"}
	}
	channel, rawID, _ := strings.Cut(post, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, &StructureError{Element: "data-post", Post: post, Err: err}
	}

	datetime, ok := node.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return nil, &StructureError{Element: "time", Post: post}
	}
	createdAt, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return nil, &StructureError{Element: "time", Post: post, Err: err}
	}

	msg := &models.ChannelMessage{
		ID:        id,
		Channel:   channel,
		CreatedAt: createdAt,
		Edited:    strings.Contains(JoinText(ownText(node.Find("span.tgme_widget_message_meta").First()), " "), "edited"),
		Author:    optionalText(node.Find("span.tgme_widget_message_from_author").First(), ""),
		URLs:      []models.TaggedURL{},
	}

	textDiv := node.Find(`div[class*="tgme_widget_message_text"]`).First()

	if node.Find(`div[class*="service_message"]`).Length() > 0 {
		msg.Type = models.MessageTypeService
		if textDiv.Length() > 0 {
			text := JoinText(TextFragments(textDiv), "")
			msg.Text = &text
		}
		if src, ok := node.Find("a.tgme_widget_message_service_photo > img").First().Attr("src"); ok {
			msg.URLs = append(msg.URLs, models.TaggedURL{Tag: models.URLTagPhoto, URL: resolveURL(base, src)})
		}
		return msg, nil
	}

	views := JoinText(TextFragments(node.Find(`span[class*="tgme_widget_message_views"]`)), "")
	if views != "" {
		n, err := DecodeCount(views)
		if err != nil {
			return nil, err
		}
		msg.Views = &n
	}

	if textDiv.Length() > 0 {
		text := JoinText(TextFragments(textDiv), "\n")
		msg.Text = &text
	}

	patches := make([]*patch, 0, len(detectors))
	for _, detect := range detectors {
		p, err := detect(node, textDiv, base)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	typ, urls := classify(patches)
	msg.Type = typ
	msg.URLs = append(msg.URLs, urls...)

	if href, ok := node.Find(`a[class*="tgme_widget_message_reply"]`).First().Attr("href"); ok {
		if id, err := strconv.ParseInt(lastSegment(href), 10, 64); err == nil {
			msg.ReplyToID = &id
		}
	}

	if preview := node.Find(`a[class*="tgme_widget_message_link_preview"]`).First(); preview.Length() > 0 {
		if href, ok := preview.Attr("href"); ok {
			msg.PreviewURL = &href
		}
		if style, ok := preview.Find(`i[class*="link_preview_"]`).First().Attr("style"); ok {
			if img, err := ExtractBackgroundImage(style); err == nil {
				msg.PreviewImageURL = &img
			}
		}
		msg.PreviewSiteName = optionalText(preview.Find(`div[class*="link_preview_site_name"]`), "\n")
		msg.PreviewTitle = optionalText(preview.Find(`div[class*="link_preview_title"]`), "\n")
		msg.PreviewDescription = optionalText(preview.Find(`div[class*="link_preview_description"]`), "\n")
	}

	if fwd := node.Find(`a[class*="tgme_widget_message_forwarded_from_name"]`).First(); fwd.Length() > 0 {
		name := JoinText(TextFragments(fwd), "\n")
		msg.ForwardedAuthor = &name
		if href, ok := fwd.Attr("href"); ok {
			msg.ForwardedAuthorURL = &href
		}
	}

	return msg, nil
}

// optionalText joins the text of sel, returning nil when nothing is left.
func optionalText(sel *goquery.Selection, delimiter string) *string {
	if sel.Length() == 0 {
		return nil
	}
	text := JoinText(TextFragments(sel), delimiter)
	if text == "" {
		return nil
	}
	return &text
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func lastSegment(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	return href[strings.LastIndex(href, "/")+1:]
}
