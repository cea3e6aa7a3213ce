package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tchan/internal/models"
)

type goldenMessage struct {
	Fixture string                `json:"fixture"`
	PageURL string                `json:"page_url"`
	Message models.ChannelMessage `json:"message"`
}

func loadDocument(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name+".html"))
	require.NoError(t, err)
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func documentFromString(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestParseMessages_Golden(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "messages.golden.json"))
	require.NoError(t, err)

	var cases []goldenMessage
	require.NoError(t, json.Unmarshal(data, &cases))
	require.NotEmpty(t, cases)

	for _, tc := range cases {
		t.Run(tc.Fixture, func(t *testing.T) {
			page, err := ParseMessages(loadDocument(t, tc.Fixture), tc.PageURL)
			require.NoError(t, err)
			require.False(t, page.Truncated)
			require.Len(t, page.Messages, 1)

			got := page.Messages[0]
			want := tc.Message
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s, got %s", want.CreatedAt, got.CreatedAt)
			// locations differ between the decoders, instants must not
			got.CreatedAt = want.CreatedAt

			assert.Equal(t, want, got)
		})
	}
}

func TestParseMessages_ServiceMessageNeverCarriesViews(t *testing.T) {
	page, err := ParseMessages(loadDocument(t, "service_message_channel_photo_updated"), "https://t.me/s/tchantest")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)

	msg := page.Messages[0]
	assert.Equal(t, models.MessageTypeService, msg.Type)
	assert.Nil(t, msg.Views)
	assert.Nil(t, msg.PreviewURL)
	assert.Nil(t, msg.ForwardedAuthor)
	require.Len(t, msg.URLs, 1)
	assert.Equal(t, models.URLTagPhoto, msg.URLs[0].Tag)
}

const pageTemplate = `<html><head>%s</head><body><section class="tgme_channel_history">%s</section></body></html>`

func messageMarkup(post, datetime, body string) string {
	return `<div class="tgme_widget_message_wrap js-widget_message_wrap">` +
		`<div class="tgme_widget_message text_not_supported_wrap js-widget_message" data-post="` + post + `">` +
		body +
		`<div class="tgme_widget_message_footer"><div class="tgme_widget_message_info">` +
		`<span class="tgme_widget_message_meta"><a class="tgme_widget_message_date" href="https://t.me/` + post + `">` +
		`<time datetime="` + datetime + `" class="time">07:30</time></a></span>` +
		`</div></div></div></div>`
}

func pageMarkup(head string, messages ...string) string {
	return fmt.Sprintf(pageTemplate, head, strings.Join(messages, ""))
}

func TestParseMessages_OrderNewestFirst(t *testing.T) {
	doc := documentFromString(t, pageMarkup("",
		messageMarkup("chan/10", "2023-02-24T07:00:00+00:00", `<div class="tgme_widget_message_text">first</div>`),
		messageMarkup("chan/11", "2023-02-24T07:01:00+00:00", `<div class="tgme_widget_message_text">second</div>`),
		messageMarkup("chan/12", "2023-02-24T07:02:00+00:00", `<div class="tgme_widget_message_text">third</div>`),
	))

	result, err := ParseMessages(doc, "https://t.me/s/chan")
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)

	var ids []int64
	for _, m := range result.Messages {
		ids = append(ids, m.ID)
		assert.Equal(t, "chan", m.Channel)
	}
	assert.Equal(t, []int64{12, 11, 10}, ids)
}

func TestParseMessages_NoMessagesPlaceholderStopsExtraction(t *testing.T) {
	placeholder := `<div class="tgme_widget_message_wrap"><div class="tme_no_messages_found">No messages found</div></div>`
	doc := documentFromString(t, pageMarkup("",
		messageMarkup("chan/10", "2023-02-24T07:00:00+00:00", `<div class="tgme_widget_message_text">older</div>`),
		placeholder,
	))

	result, err := ParseMessages(doc, "https://t.me/s/chan")
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Empty(t, result.Messages)
}

func TestParseMessages_EmptyPage(t *testing.T) {
	result, err := ParseMessages(documentFromString(t, pageMarkup("")), "https://t.me/s/chan")
	require.NoError(t, err)
	assert.False(t, result.Truncated)
	assert.Empty(t, result.Messages)
}

func TestParseMessages_StructureErrors(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		element string
	}{
		{
			name:    "missing data-post",
			markup:  `<div class="tgme_widget_message_wrap"><div class="tgme_widget_message"></div></div>`,
			element: "data-post",
		},
		{
			name:    "non numeric id",
			markup:  messageMarkup("chan/abc", "2023-02-24T07:00:00+00:00", ""),
			element: "data-post",
		},
		{
			name:    "bad timestamp",
			markup:  messageMarkup("chan/1", "yesterday", ""),
			element: "time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessages(documentFromString(t, pageMarkup("", tt.markup)), "https://t.me/s/chan")
			require.Error(t, err)

			var structErr *StructureError
			require.ErrorAs(t, err, &structErr)
			assert.Equal(t, tt.element, structErr.Element)
		})
	}
}

func TestParseMessages_MalformedPhotoStyleIsFatal(t *testing.T) {
	body := `<a class="tgme_widget_message_photo_wrap" style="width:100px"></a>`
	doc := documentFromString(t, pageMarkup("", messageMarkup("chan/1", "2023-02-24T07:00:00+00:00", body)))

	_, err := ParseMessages(doc, "https://t.me/s/chan")

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "width:100px", formatErr.Input)
}

func TestParseMessages_RelativeLinksResolveAgainstPage(t *testing.T) {
	body := `<div class="tgme_widget_message_text"><a href="?q=%23tag">#tag</a> <a href="/other/5">x</a></div>`
	doc := documentFromString(t, pageMarkup("", messageMarkup("chan/1", "2023-02-24T07:00:00+00:00", body)))

	result, err := ParseMessages(doc, "https://t.me/s/chan")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	assert.Equal(t, []models.TaggedURL{
		{Tag: models.URLTagLink, URL: "https://t.me/s/chan?q=%23tag"},
		{Tag: models.URLTagLink, URL: "https://t.me/other/5"},
	}, result.Messages[0].URLs)
}

func TestNextPageURL(t *testing.T) {
	t.Run("relative prev link", func(t *testing.T) {
		doc := documentFromString(t, pageMarkup(`<link rel="prev" href="/s/chan?before=42">`))
		next, err := NextPageURL(doc, "https://t.me/s/chan")
		require.NoError(t, err)
		assert.Equal(t, "https://t.me/s/chan?before=42", next)
	})

	t.Run("no prev link", func(t *testing.T) {
		doc := documentFromString(t, pageMarkup(`<link rel="canonical" href="/s/chan">`))
		next, err := NextPageURL(doc, "https://t.me/s/chan")
		require.NoError(t, err)
		assert.Empty(t, next)
	})
}
