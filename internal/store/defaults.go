package store

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultAsset is the asset assigned to an owner when nobody picked one.
type DefaultAsset struct {
	ChannelSlug   string
	BlueprintID   string
	URL           string
	PolicyVersion string
	AssignedAt    int64
}

// GetDefaultAsset returns the owner's default asset, or nil if none is set.
func (db *DB) GetDefaultAsset(channelSlug, blueprintID string) (*DefaultAsset, error) {
	var d DefaultAsset
	err := db.QueryRow(`
		SELECT channel_slug, blueprint_id, url, policy_version, assigned_at
		FROM default_assets WHERE channel_slug = ? AND blueprint_id = ?
	`, channelSlug, blueprintID).Scan(&d.ChannelSlug, &d.BlueprintID, &d.URL, &d.PolicyVersion, &d.AssignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default asset: %w", err)
	}
	return &d, nil
}

// InsertDefaultAsset stores the owner's default unless one already exists.
// It reports whether this call inserted the row. Racing writers computing the
// same deterministic value make the loser's no-op harmless.
func (db *DB) InsertDefaultAsset(channelSlug, blueprintID, url, policyVersion string, now time.Time) (bool, error) {
	result, err := db.Exec(`
		INSERT INTO default_assets (channel_slug, blueprint_id, url, policy_version, assigned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (channel_slug, blueprint_id) DO NOTHING
	`, channelSlug, blueprintID, url, policyVersion, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert default asset: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ClearDefaultAsset removes the owner's default so it can be reassigned.
func (db *DB) ClearDefaultAsset(channelSlug, blueprintID string) error {
	_, err := db.Exec(`DELETE FROM default_assets WHERE channel_slug = ? AND blueprint_id = ?`, channelSlug, blueprintID)
	if err != nil {
		return fmt.Errorf("clear default asset: %w", err)
	}
	return nil
}
