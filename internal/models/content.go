package models

import "time"

// CollectedItem is one unit of external content (a post). Items are
// immutable once produced by the collector; downstream stages may attach
// matched keywords without changing identity.
type CollectedItem struct {
	ExternalID      string    `json:"external_id"`
	SourceGroup     string    `json:"source_group"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	PopularityScore int       `json:"popularity_score"`
	ReplyCount      int       `json:"reply_count"`
	CreatedAt       time.Time `json:"created_at"`
	CursorOrigin    string    `json:"cursor_origin,omitempty"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
}

// ReplyKind tags the variant of a reply node as reported by the source.
type ReplyKind string

const (
	ReplyComment ReplyKind = "comment"
	ReplyDeleted ReplyKind = "deleted"
	ReplyUnknown ReplyKind = "unknown"
)

// CollectedReply is one node of a nested reply tree, flattened by the
// traversal. Depth is always strictly below the traversal's maximum depth.
// AuthorToken is a stable one-way hash, never the raw author name, and
// Content has already been through redaction.
type CollectedReply struct {
	ExternalID  string    `json:"external_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Depth       int       `json:"depth"`
	Kind        ReplyKind `json:"kind"`
	Content     string    `json:"content"`
	AuthorToken string    `json:"author_token,omitempty"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}
