package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"hk_bids/models"
)

const (
	GrantModeAuth = "auth"
	GrantModeBid  = "bid"
)

// Grant is a successful access decision.
type Grant struct {
	Mode    string
	BatchID string
}

// BatchLister provides the active batch id set.
type BatchLister interface {
	BatchIDs(ctx context.Context) (map[string]struct{}, error)
}

// AccessGuard decides whether a link may open the bid form. It holds no
// state between requests.
type AccessGuard struct {
	secret  string
	batches BatchLister
}

func NewAccessGuard(secret string, batches BatchLister) *AccessGuard {
	return &AccessGuard{secret: secret, batches: batches}
}

// Check evaluates the link query. An auth token takes precedence over a
// batch id. Anything else is ErrAccessDenied.
func (g *AccessGuard) Check(ctx context.Context, query map[string][]string) (Grant, error) {
	if token := first(query, "auth"); token != "" {
		if g.secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) == 1 {
			return Grant{Mode: GrantModeAuth}, nil
		}
		return Grant{}, models.ErrAccessDenied
	}

	batchID := first(query, "bid")
	if batchID == "" {
		return Grant{}, models.ErrAccessDenied
	}
	ids, err := g.batches.BatchIDs(ctx)
	if err != nil {
		return Grant{}, fmt.Errorf("load batch ids: %w", err)
	}
	if _, ok := ids[batchID]; !ok {
		return Grant{}, models.ErrAccessDenied
	}
	return Grant{Mode: GrantModeBid, BatchID: batchID}, nil
}

func first(query map[string][]string, key string) string {
	if v := query[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
