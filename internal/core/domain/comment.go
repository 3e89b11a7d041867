package domain

import "strconv"

// Comment is a comment on a post. Replies are comments with a non-zero ParentID.
type Comment struct {
	ID        uint64 `json:"id"`
	PostID    uint64 `json:"post_id"`
	ParentID  uint64 `json:"parent_id,omitempty"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp uint64 `json:"timestamp"`
	LikeCount uint64 `json:"like_count"`
}

// Key returns the comment id as a string.
func (c Comment) Key() string {
	return strconv.FormatUint(c.ID, 10)
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != 0
}
