package models

import (
	"time"
)

// Thread groups one message tree under a subject. Comments is a derived
// count, recomputed after every tree mutation.
type Thread struct {
	ID          string    `json:"id"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Upvotes     int       `json:"upvotes"`
	Comments    int       `json:"comments"`
}

type CreateThreadRequest struct {
	Subreddit   string `json:"subreddit"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
