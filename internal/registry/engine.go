package registry

import (
	"context"

	"fedreg/internal/directory"
	"fedreg/internal/trust"
)

// QueryEngine decides recognition. The trust-chain engine is canonical; the
// directory engine is a simpler membership check selectable by config.
type QueryEngine interface {
	Recognized(ctx context.Context, req RecognitionRequest) bool
}

const (
	StrategyTrustChain = "trust-chain"
	StrategyDirectory  = "directory"
)

// TrustChainEngine recognizes an entity when it is trusted, the authority is
// valid, and any requested assertion is authorized.
type TrustChainEngine struct {
	resolver *trust.Resolver
	anchors  *trust.Anchors
	baseID   string
}

func NewTrustChainEngine(resolver *trust.Resolver, anchors *trust.Anchors, baseID string) *TrustChainEngine {
	return &TrustChainEngine{resolver: resolver, anchors: anchors, baseID: baseID}
}

func (e *TrustChainEngine) Recognized(ctx context.Context, req RecognitionRequest) bool {
	if !e.resolver.VerifyTrust(ctx, req.EntityID).Trusted {
		return false
	}
	if !e.authorityValid(ctx, req.AuthorityID) {
		return false
	}
	if req.AssertionID != "" {
		return e.resolver.CheckAuthorization(ctx, req.EntityID, req.AssertionID, req.AuthorityID)
	}
	return true
}

// authorityValid holds for the registry itself, a configured trust anchor,
// or any authority that is itself trusted.
func (e *TrustChainEngine) authorityValid(ctx context.Context, authorityID string) bool {
	if authorityID == e.baseID || e.anchors.Contains(authorityID) {
		return true
	}
	return e.resolver.VerifyTrust(ctx, authorityID).Trusted
}

// DirectoryEngine recognizes any entity that exists in the directory.
type DirectoryEngine struct {
	directory *directory.Service
}

func NewDirectoryEngine(dir *directory.Service) *DirectoryEngine {
	return &DirectoryEngine{directory: dir}
}

func (e *DirectoryEngine) Recognized(ctx context.Context, req RecognitionRequest) bool {
	_, err := e.directory.Get(ctx, req.EntityID)
	return err == nil
}
