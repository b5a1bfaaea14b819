package conversations

import (
	"testing"
	"time"
)

func TestClassifyMedia(t *testing.T) {
	cases := map[string]MediaKind{
		"image/jpeg":               MediaImage,
		"IMAGE/PNG":                MediaImage,
		"audio/ogg; codecs=opus":   MediaAudio,
		"application/pdf":          MediaDocument,
		"application/vnd.ms-excel": MediaOther,
		"video/mp4":                MediaOther,
		"":                         MediaOther,
	}
	for ct, want := range cases {
		if got := ClassifyMedia(ct); got != want {
			t.Errorf("ClassifyMedia(%q) = %s, want %s", ct, got, want)
		}
	}
}

func TestPreview(t *testing.T) {
	image := NewMedia("https://api.twilio.com/m/1", "image/jpeg")
	pdf := NewMedia("https://api.twilio.com/m/2", "application/pdf")
	video := NewMedia("https://api.twilio.com/m/3", "video/mp4")
	audio := NewMedia("https://api.twilio.com/m/4", "audio/ogg")

	cases := []struct {
		name    string
		content Content
		want    string
	}{
		{"text", NewContent("Confirmo", nil), "Confirmo"},
		{"image only", NewContent("", &image), "[Image]"},
		{"audio only", NewContent("  ", &audio), "[Audio]"},
		{"pdf only", NewContent("", &pdf), "[Document]"},
		{"other only", NewContent("", &video), "[File]"},
		{"text and media", NewContent("mira", &image), "mira"},
		{"empty", NewContent("", nil), "[Empty message]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.content.Preview(); got != tc.want {
				t.Fatalf("Preview() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewContentVariants(t *testing.T) {
	media := NewMedia("u", "image/png")
	if _, ok := NewContent("hola", nil).(TextContent); !ok {
		t.Fatal("expected TextContent")
	}
	if _, ok := NewContent("", &media).(MediaContent); !ok {
		t.Fatal("expected MediaContent")
	}
	if _, ok := NewContent("hola", &media).(TextMediaContent); !ok {
		t.Fatal("expected TextMediaContent")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	media := NewMedia("https://api.twilio.com/m/1", "application/pdf")
	media.ArchiveKey = "media/abc.pdf"
	msg := Message{
		ID:             "m1",
		ConversationID: "whatsapp:+524428133314",
		Sender:         SenderClient,
		Content:        NewContent("comprobante", &media),
		Timestamp:      time.Date(2025, 7, 14, 15, 0, 0, 0, time.UTC),
	}
	rec := msg.record()
	if rec.MediaType != MediaDocument || rec.Text != "comprobante" {
		t.Fatalf("unexpected record %+v", rec)
	}
	back := rec.message()
	got, ok := back.Media()
	if !ok || got.ArchiveKey != "media/abc.pdf" || back.Text() != "comprobante" {
		t.Fatalf("unexpected message %+v", back)
	}
	if rec.SortKey != "2025-07-14T15:00:00.000000000Z#m1" {
		t.Fatalf("unexpected sort key %s", rec.SortKey)
	}
}
