package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// QualifiedPlaySeconds is the minimum listened duration for a play to count
// toward play-count rankings and the "songs played" total. Shorter plays
// still contribute listened minutes.
const QualifiedPlaySeconds = 30

// PlayRecord is one listening event as delivered by the host player.
// The local sequence id is assigned on append and is not stable across
// machines; cross-machine identity is the IdentityKey tuple.
type PlayRecord struct {
	ID               int64   `json:"id"`
	SongID           string  `json:"songId" validate:"required"`
	SongTitle        string  `json:"songTitle" validate:"required"`
	ArtistID         string  `json:"artistId" validate:"required"`
	ArtistName       string  `json:"artistName" validate:"required"`
	ArtistImageURL   string  `json:"artistImageUrl,omitempty"`
	AlbumName        string  `json:"albumName,omitempty"`
	ThumbnailURL     string  `json:"thumbnailUrl,omitempty"`
	Timestamp        int64   `json:"timestamp" validate:"required|min:1"`
	DurationListened float64 `json:"durationListened"`
	TotalDuration    float64 `json:"totalDuration"`
	Skipped          bool    `json:"skipped"`
	Completed        bool    `json:"completed"`
}

// Qualified reports whether the record counts toward play-count rankings.
func (r *PlayRecord) Qualified() bool {
	return r.DurationListened >= QualifiedPlaySeconds
}

// Minutes returns the listened duration in minutes.
func (r *PlayRecord) Minutes() float64 {
	return r.DurationListened / 60
}

// IdentityKey returns the deduplication identity of the record:
// (songId, artistId, timestamp, durationListened, totalDuration).
func (r *PlayRecord) IdentityKey() string {
	return r.SongID + "|" + r.ArtistID + "|" +
		strconv.FormatInt(r.Timestamp, 10) + "|" +
		strconv.FormatFloat(r.DurationListened, 'g', -1, 64) + "|" +
		strconv.FormatFloat(r.TotalDuration, 'g', -1, 64)
}

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// FallbackThumbnail synthesizes the canonical thumbnail URL for ids that
// match the 11-character video-id pattern. Returns "" for anything else.
func FallbackThumbnail(songID string) string {
	if !videoIDPattern.MatchString(songID) {
		return ""
	}
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", songID)
}
