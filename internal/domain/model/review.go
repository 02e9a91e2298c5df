// Package model contains the review, ranking and publication rows exchanged
// with the data collaborators.
package model

import "strconv"

// Year is a review/ranking edition. It partitions every cache and selection.
type Year int

// PublicationID is the stable identity of a publication.
type PublicationID int

// AlbumID identifies an album across publications and years.
type AlbumID int

func (y Year) String() string          { return strconv.Itoa(int(y)) }
func (p PublicationID) String() string { return strconv.Itoa(int(p)) }

// Publication is a reviewing outlet the user can select.
type Publication struct {
	ID              PublicationID `json:"id"`
	Name            string        `json:"name"`
	UniqueName      string        `json:"unique_name"`
	AvgScore        float64       `json:"avg_score"`
	NumberOfReviews int           `json:"number_of_reviews"`
}

// Review is one scored review row.
type Review struct {
	ID            int           `json:"id"`
	PublicationID PublicationID `json:"publication_id" validate:"required"`
	AlbumID       AlbumID       `json:"album_id" validate:"required"`
	Score         float64       `json:"score" validate:"gte=0,lte=100"`
	ReviewURL     string        `json:"review_url,omitempty"`
	Year          Year          `json:"year" validate:"required"`
}

// Ranking is one year-end ranking row. Score is nil when the publication
// ranked the album without scoring it.
type Ranking struct {
	ID            int           `json:"id"`
	PublicationID PublicationID `json:"publication_id" validate:"required"`
	AlbumID       AlbumID       `json:"album_id" validate:"required"`
	Rank          int           `json:"rank" validate:"gte=1"`
	Year          Year          `json:"year" validate:"required"`
	Score         *float64      `json:"score"`
}

// BrushGeometry is the last brush rectangle in chart coordinates. It is kept
// only so the chart can redraw it.
type BrushGeometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scores returns the score of every review, in row order.
func Scores(rows []Review) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Score
	}
	return out
}
