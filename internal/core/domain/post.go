package domain

import "strconv"

// Post is a post record as returned by the posts contract.
type Post struct {
	ID            uint64 `json:"id"`
	Creator       string `json:"creator"`
	ContentCID    string `json:"content_cid"`
	Timestamp     uint64 `json:"timestamp"`
	LikeCount     uint64 `json:"like_count"`
	CommentCount  uint64 `json:"comment_count"`
	IsPoll        bool   `json:"is_poll"`
	LikedByViewer bool   `json:"liked_by_viewer"`
}

// Key returns the post id as a string.
func (p Post) Key() string {
	return strconv.FormatUint(p.ID, 10)
}
