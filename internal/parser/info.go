package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blockedby/tchan/internal/models"
)

// ParseInfo extracts channel metadata from a preview page.
func ParseInfo(doc *goquery.Document) (*models.ChannelInfo, error) {
	username := JoinText(TextFragments(doc.Find("div.tgme_channel_info_header_username")), "")
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return nil, &StructureError{Element: "channel username"}
	}

	info := &models.ChannelInfo{
		Username: username,
		Title:    metaContent(doc, "og:title"),
		ImageURL: metaContent(doc, "og:image"),
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		info.Description = &desc
	}

	var err error
	doc.Find("div.tgme_channel_info_counters").First().
		Find("div.tgme_channel_info_counter").
		EachWithBreak(func(_ int, counter *goquery.Selection) bool {
			key := strings.TrimSpace(counter.Find("span.counter_type").First().Text())
			var value int64
			value, err = DecodeCount(counter.Find("span.counter_value").First().Text())
			if err != nil {
				return false
			}

			// singular form is used when the counter equals one
			switch strings.TrimSuffix(key, "s") {
			case "subscriber":
				info.Subscribers = &value
			case "photo":
				info.Photos = &value
			case "video":
				info.Videos = &value
			case "link":
				info.Links = &value
			}
			return true
		})
	if err != nil {
		return nil, err
	}

	return info, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return content
}
