package parser

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/blockedby/tchan/internal/models"
)

type mergeMode int

const (
	// mergeOverride replaces whatever type was detected before.
	mergeOverride mergeMode = iota
	// mergeUpgrade sets the type, or turns an existing one into multimedia.
	mergeUpgrade
)

// patch is what a single detector contributes to a message. An empty typ
// only contributes urls.
type patch struct {
	typ  models.MessageType
	mode mergeMode
	urls []models.TaggedURL
}

// detector inspects one message node. textDiv is the message text body and
// may be empty.
type detector func(node, textDiv *goquery.Selection, base *url.URL) (*patch, error)

// detectors run in this order; url order in the record follows it.
var detectors = []detector{
	detectEmoji,
	detectSticker,
	detectLocation,
	detectAudio,
	detectDocument,
	detectPoll,
	detectPhotos,
	detectRoundVideos,
	detectVideos,
	detectInlineLinks,
	detectThumbnails,
}

// classify folds detector patches left to right.
func classify(patches []*patch) (models.MessageType, []models.TaggedURL) {
	var typ models.MessageType
	urls := []models.TaggedURL{}

	for _, p := range patches {
		if p == nil {
			continue
		}
		urls = append(urls, p.urls...)

		switch {
		case p.typ == "":
		case p.mode == mergeUpgrade && typ != "":
			typ = models.MessageTypeMultimedia
		default:
			typ = p.typ
		}
	}

	if typ == "" {
		typ = models.MessageTypeText
	}
	return typ, urls
}

func tagged(tag models.URLTag, u string) models.TaggedURL {
	return models.TaggedURL{Tag: tag, URL: u}
}

func detectEmoji(_, textDiv *goquery.Selection, base *url.URL) (*patch, error) {
	style, ok := textDiv.Find("i.emoji").First().Attr("style")
	if !ok {
		return nil, nil
	}
	img, err := ExtractBackgroundImage(style)
	if err != nil {
		return nil, err
	}
	return &patch{urls: []models.TaggedURL{tagged(models.URLTagPhoto, resolveURL(base, img))}}, nil
}

func detectSticker(node, textDiv *goquery.Selection, base *url.URL) (*patch, error) {
	if textDiv.Length() > 0 {
		return nil, nil
	}
	src, ok := node.Find(`div[class*="tgme_widget_message_sticker_wrap"] i[class*="tgme_widget_message_sticker"][data-webp]`).First().Attr("data-webp")
	if !ok {
		return nil, nil
	}
	return &patch{
		typ:  models.MessageTypeSticker,
		urls: []models.TaggedURL{tagged(models.URLTagPhoto, resolveURL(base, src))},
	}, nil
}

func detectLocation(node, textDiv *goquery.Selection, base *url.URL) (*patch, error) {
	if textDiv.Length() > 0 {
		return nil, nil
	}
	href, ok := node.Find("a.tgme_widget_message_location_wrap").First().Attr("href")
	if !ok {
		return nil, nil
	}
	return &patch{
		typ:  models.MessageTypeLocation,
		urls: []models.TaggedURL{tagged(models.URLTagLink, resolveURL(base, href))},
	}, nil
}

func detectAudio(node, textDiv *goquery.Selection, base *url.URL) (*patch, error) {
	if textDiv.Length() > 0 {
		return nil, nil
	}
	src, ok := node.Find("audio[src]").First().Attr("src")
	if !ok {
		return nil, nil
	}
	return &patch{
		typ:  models.MessageTypeAudio,
		urls: []models.TaggedURL{tagged(models.URLTagAudio, resolveURL(base, src))},
	}, nil
}

func detectDocument(node, _ *goquery.Selection, _ *url.URL) (*patch, error) {
	if node.Find(`div[class*="tgme_widget_message_document"]`).Length() == 0 {
		return nil, nil
	}
	return &patch{typ: models.MessageTypeDocument}, nil
}

func detectPoll(node, _ *goquery.Selection, _ *url.URL) (*patch, error) {
	if node.Find(`div[class*="tgme_widget_message_poll"]`).Length() == 0 {
		return nil, nil
	}
	return &patch{typ: models.MessageTypePoll}, nil
}

func detectPhotos(node, _ *goquery.Selection, base *url.URL) (*patch, error) {
	urls, err := styleURLs(node.Find(`a[class*="tgme_widget_message_photo_wrap"][style]`), models.URLTagPhoto, base)
	if err != nil || len(urls) == 0 {
		return nil, err
	}
	return &patch{typ: models.MessageTypePhoto, mode: mergeUpgrade, urls: urls}, nil
}

func detectRoundVideos(node, _ *goquery.Selection, base *url.URL) (*patch, error) {
	urls := srcURLs(node.Find(`video[class*="tgme_widget_message_roundvideo"][src]`), models.URLTagRoundVideo, base)
	if len(urls) == 0 {
		return nil, nil
	}
	return &patch{typ: models.MessageTypeRoundVideo, mode: mergeUpgrade, urls: urls}, nil
}

func detectVideos(node, _ *goquery.Selection, base *url.URL) (*patch, error) {
	if node.Find(`a[class*="tgme_widget_message_video_player"]`).Length() == 0 {
		return nil, nil
	}
	videos := node.Find(`div[class*="tgme_widget_message_video_wrap"] video[class*="tgme_widget_message_video"][src]`)
	return &patch{
		typ:  models.MessageTypeVideo,
		mode: mergeUpgrade,
		urls: srcURLs(videos, models.URLTagVideo, base),
	}, nil
}

// detectInlineLinks collects every link of the text body, hashtag search
// links included.
func detectInlineLinks(_, textDiv *goquery.Selection, base *url.URL) (*patch, error) {
	var urls []models.TaggedURL
	textDiv.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		urls = append(urls, tagged(models.URLTagLink, resolveURL(base, href)))
	})
	if len(urls) == 0 {
		return nil, nil
	}
	return &patch{urls: urls}, nil
}

var thumbnailKinds = []struct {
	class string
	tag   models.URLTag
}{
	{"tgme_widget_message_reply_thumb", models.URLTagThumbnailReply},
	{"tgme_widget_message_video_thumb", models.URLTagThumbnailVideo},
	{"tgme_widget_message_roundvideo_thumb", models.URLTagThumbnailRoundVideo},
}

func detectThumbnails(node, _ *goquery.Selection, base *url.URL) (*patch, error) {
	var urls []models.TaggedURL
	for _, kind := range thumbnailKinds {
		found, err := styleURLs(node.Find(`i[class*="`+kind.class+`"][style]`), kind.tag, base)
		if err != nil {
			return nil, err
		}
		urls = append(urls, found...)
	}
	if len(urls) == 0 {
		return nil, nil
	}
	return &patch{urls: urls}, nil
}

func styleURLs(sel *goquery.Selection, tag models.URLTag, base *url.URL) ([]models.TaggedURL, error) {
	var urls []models.TaggedURL
	for i := range sel.Nodes {
		style, _ := sel.Eq(i).Attr("style")
		img, err := ExtractBackgroundImage(style)
		if err != nil {
			return nil, err
		}
		urls = append(urls, tagged(tag, resolveURL(base, img)))
	}
	return urls, nil
}

func srcURLs(sel *goquery.Selection, tag models.URLTag, base *url.URL) []models.TaggedURL {
	var urls []models.TaggedURL
	sel.Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		urls = append(urls, tagged(tag, resolveURL(base, src)))
	})
	return urls
}
