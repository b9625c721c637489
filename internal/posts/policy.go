package posts

import (
	"context"

	"github.com/inkwell-press/inkwell/internal/authz"
)

// Policy translates resource-level questions into permission checks.
// Ownership selects between the own-post and others-post permission,
// and the post itself becomes the condition context, so temporary
// grants scoped to a single post resolve correctly.
type Policy struct {
	gate *authz.Gate
}

// NewPolicy constructs a Policy over the given gate.
func NewPolicy(gate *authz.Gate) Policy {
	return Policy{gate: gate}
}

func (p Policy) CanCreate(ctx context.Context, userID int64) (bool, error) {
	decision, err := p.gate.Check(ctx, userID, authz.PermCreatePost, nil)
	return decision.Allowed(), err
}

func (p Policy) CanEdit(ctx context.Context, userID int64, post Post) (bool, error) {
	return p.check(ctx, userID, post, authz.PermEditOwnPost, authz.PermEditOthersPost)
}

func (p Policy) CanDelete(ctx context.Context, userID int64, post Post) (bool, error) {
	return p.check(ctx, userID, post, authz.PermDeleteOwnPost, authz.PermDeleteOthersPost)
}

func (p Policy) CanPublish(ctx context.Context, userID int64, post Post) (bool, error) {
	decision, err := p.gate.Check(ctx, userID, authz.PermPublishPost, conditionsFor(post, post.OwnedBy(userID)))
	return decision.Allowed(), err
}

func (p Policy) check(ctx context.Context, userID int64, post Post, ownPerm, othersPerm string) (bool, error) {
	owned := post.OwnedBy(userID)
	permission := othersPerm
	if owned {
		permission = ownPerm
	}
	decision, err := p.gate.Check(ctx, userID, permission, conditionsFor(post, owned))
	return decision.Allowed(), err
}

func conditionsFor(post Post, owned bool) authz.Context {
	return authz.Context{
		"post_id":  post.ID,
		"is_owner": owned,
	}
}
