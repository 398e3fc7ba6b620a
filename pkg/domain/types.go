package domain

import (
	"net/url"
	"strings"
)

// Message is one message-plus-song entry, the unit of storage. JSON field
// names are part of the stored blob format.
type Message struct {
	ID            string `json:"id"`
	RecipientName string `json:"recipientName"`
	Message       string `json:"message"`
	SongID        string `json:"songId"`
	SongName      string `json:"songName"`
	ArtistName    string `json:"artistName"`
	AlbumImage    string `json:"albumImage"`
	CreatedAt     int64  `json:"createdAt"`
	Likes         int    `json:"likes"`
}

// Draft is a message before the store assigns id, timestamp and like count.
type Draft struct {
	RecipientName string `json:"recipientName"`
	Message       string `json:"message"`
	SongID        string `json:"songId"`
	SongName      string `json:"songName"`
	ArtistName    string `json:"artistName"`
	AlbumImage    string `json:"albumImage"`
}

// Track is one search candidate returned by the music catalog.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	AlbumName  string `json:"albumName,omitempty"`
	AlbumImage string `json:"albumImage"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Links are the share affordances rendered next to a message.
type Links struct {
	Permalink string `json:"permalink"`
	Embed     string `json:"embed"`
	WhatsApp  string `json:"whatsapp"`
}

const (
	spotifyEmbedBase = "https://open.spotify.com/embed/track/"
	whatsAppBase     = "https://wa.me/?text="
	shareTextPrefix  = "Check out this message on For Bias: "
)

// BuildLinks derives the permalink, player embed and share intent for m.
// baseURL is the public origin of the site, e.g. https://forbias.example.
func BuildLinks(baseURL string, m Message) Links {
	permalink := strings.TrimRight(baseURL, "/") + "/messages/" + url.PathEscape(m.ID)
	return Links{
		Permalink: permalink,
		Embed:     spotifyEmbedBase + url.PathEscape(m.SongID) + "?theme=0",
		WhatsApp:  whatsAppBase + url.QueryEscape(shareTextPrefix+permalink),
	}
}
