package collector

import (
	"context"
	"math"
	"sort"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// hardMaxReplyDepth is the absolute traversal limit. Configured depths above
// it are clamped, so a malformed or adversarial tree can never recurse past
// three levels.
const hardMaxReplyDepth = 3

// ReplyResult is the processed reply tree of one item, flattened.
type ReplyResult struct {
	ItemID          string
	Replies         []models.CollectedReply
	ProcessedLevels int
}

// Replies fetches and processes the reply tree for one item: depth-bounded
// traversal, author anonymization and content sanitization.
func (c *Collector) Replies(ctx context.Context, source Source, itemID string) (*ReplyResult, error) {
	maxDepth := c.config.MaxReplyDepth
	if maxDepth <= 0 || maxDepth > hardMaxReplyDepth {
		maxDepth = hardMaxReplyDepth
	}

	if err := c.pacer.wait(ctx); err != nil {
		return nil, err
	}

	br := c.breakers.Get(source.Name())
	var raw []RawReply
	err := br.Execute(ctx, func(ctx context.Context) error {
		r, err := source.FetchReplies(ctx, itemID, c.config.ReplyLimit, c.config.ReplySort)
		if err != nil {
			return err
		}
		raw = r
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	result := &ReplyResult{ItemID: itemID}
	c.walkReplies(raw, "", 0, maxDepth, result)
	return result, nil
}

// walkReplies flattens a reply tree into result, stopping at maxDepth.
// depth is zero-based; nodes at depth >= maxDepth are dropped along with
// their subtrees.
func (c *Collector) walkReplies(nodes []RawReply, parentID string, depth, maxDepth int, result *ReplyResult) {
	if depth >= maxDepth {
		return
	}
	if len(nodes) > 0 && depth+1 > result.ProcessedLevels {
		result.ProcessedLevels = depth + 1
	}

	for _, node := range nodes {
		reply := models.CollectedReply{
			ExternalID:  node.ID,
			ParentID:    parentID,
			Depth:       depth,
			Kind:        replyKind(node.Kind),
			Content:     SanitizeContent(node.Body),
			AuthorToken: AnonymizeAuthor(c.config.AnonymizationSalt, node.Author),
			Score:       node.Score,
			CreatedAt:   node.CreatedAt,
		}
		result.Replies = append(result.Replies, reply)
		c.walkReplies(node.Children, node.ID, depth+1, maxDepth, result)
	}
}

func replyKind(kind string) models.ReplyKind {
	switch kind {
	case "", "comment":
		return models.ReplyComment
	case "deleted", "removed":
		return models.ReplyDeleted
	default:
		return models.ReplyUnknown
	}
}

// HighValueReplies collects replies for the top share of items by popularity.
// Items are ranked by popularity score descending; at least one item is
// selected when any exist. Per-item failures are isolated: a failing item is
// skipped and reported, the rest still yield results.
func (c *Collector) HighValueReplies(ctx context.Context, source Source, items []models.CollectedItem) ([]ReplyResult, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	proportion := c.config.HighValueProportion
	if proportion <= 0 || proportion > 1 {
		proportion = 0.1
	}

	ranked := make([]models.CollectedItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PopularityScore > ranked[j].PopularityScore
	})

	take := int(math.Ceil(proportion * float64(len(ranked))))
	if take < 1 {
		take = 1
	}
	ranked = ranked[:take]

	var results []ReplyResult
	var errs []error
	for _, item := range ranked {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := c.Replies(ctx, source, item.ExternalID)
		if err != nil {
			c.logger.Warn().Str("item", item.ExternalID).Err(err).Msg("reply collection failed")
			errs = append(errs, err)
			continue
		}
		results = append(results, *res)
	}
	return results, errs
}
