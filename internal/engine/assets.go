package engine

import (
	"fmt"
	"log"
	"strconv"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
)

// AssignResult is the persisted default for an owner.
type AssignResult struct {
	URL           string
	PolicyVersion string
	// Assigned is true when this call stored the default.
	Assigned bool
}

// RetainResult lists asset IDs kept and demoted by a retention pass,
// newest first.
type RetainResult struct {
	Kept    []int64
	Demoted []int64
}

func validateOwner(owner policy.OwnerKey) error {
	if owner.ChannelSlug == "" || owner.BlueprintID == "" {
		return fmt.Errorf("%w: channel slug and blueprint id are required", policy.ErrInvalidArgument)
	}
	return nil
}

// AssignDefault returns the owner's default asset, choosing one from
// candidates when none is stored yet. Concurrent callers with the same
// candidates compute the same value, so whichever insert lands first is the
// one every caller sees.
func (e *Engine) AssignDefault(owner policy.OwnerKey, candidates []string) (*AssignResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	existing, err := e.DB.GetDefaultAsset(owner.ChannelSlug, owner.BlueprintID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.Metrics.DefaultResolved(false)
		return &AssignResult{URL: existing.URL, PolicyVersion: existing.PolicyVersion}, nil
	}

	url, err := policy.SelectDefault(owner, candidates)
	if err != nil {
		return nil, err
	}

	won, err := e.DB.InsertDefaultAsset(owner.ChannelSlug, owner.BlueprintID, url, policy.HashPolicyVersion, e.now())
	if err != nil {
		return nil, err
	}
	if !won {
		// Another worker stored it between our read and insert.
		stored, err := e.DB.GetDefaultAsset(owner.ChannelSlug, owner.BlueprintID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("default for %s vanished after conflicting insert", owner)
		}
		e.Metrics.DefaultResolved(false)
		return &AssignResult{URL: stored.URL, PolicyVersion: stored.PolicyVersion}, nil
	}

	e.Metrics.DefaultResolved(true)
	return &AssignResult{URL: url, PolicyVersion: policy.HashPolicyVersion, Assigned: true}, nil
}

// DefaultFor returns the owner's stored default, or nil.
func (e *Engine) DefaultFor(owner policy.OwnerKey) (*store.DefaultAsset, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	return e.DB.GetDefaultAsset(owner.ChannelSlug, owner.BlueprintID)
}

// ResetDefault drops the owner's stored default so the next AssignDefault
// recomputes it.
func (e *Engine) ResetDefault(owner policy.OwnerKey) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	return e.DB.ClearDefaultAsset(owner.ChannelSlug, owner.BlueprintID)
}

// IngestAsset records a new active asset and enforces the retention cap.
func (e *Engine) IngestAsset(owner policy.OwnerKey, url string) (*store.Asset, *RetainResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, nil, err
	}
	if url == "" {
		return nil, nil, fmt.Errorf("%w: asset url is required", policy.ErrInvalidArgument)
	}

	asset, err := e.DB.AddAsset(owner.ChannelSlug, owner.BlueprintID, url, e.now())
	if err != nil {
		return nil, nil, err
	}

	res, err := e.Retain(owner)
	if err != nil {
		return asset, nil, err
	}
	return asset, res, nil
}

// Retain demotes the owner's oldest active assets beyond RetentionCap.
// The partition is computed from a snapshot; rerunning converges if assets
// arrive concurrently.
func (e *Engine) Retain(owner policy.OwnerKey) (*RetainResult, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	assets, err := e.DB.ListActiveAssets(owner.ChannelSlug, owner.BlueprintID)
	if err != nil {
		return nil, err
	}

	records := make([]policy.Record, len(assets))
	for i, a := range assets {
		records[i] = toRecord(a)
	}

	p, err := policy.PartitionByCap(records, e.RetentionCap)
	if err != nil {
		return nil, err
	}

	res := &RetainResult{
		Kept:    recordIDs(p.Keep),
		Demoted: recordIDs(p.Demote),
	}
	if len(res.Demoted) == 0 {
		return res, nil
	}

	n, err := e.DB.DeactivateAssets(res.Demoted)
	if err != nil {
		return nil, err
	}
	e.Metrics.Demoted(n)
	log.Printf("retention: demoted %d assets for %s (cap %d)", n, owner, e.RetentionCap)
	return res, nil
}

// toRecord zero-pads the ID so lexical tie-breaking matches numeric order.
func toRecord(a store.Asset) policy.Record {
	return policy.Record{
		ID:        fmt.Sprintf("%020d", a.ID),
		CreatedAt: msToTime(a.CreatedAt),
	}
}

func recordIDs(rs []policy.Record) []int64 {
	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
