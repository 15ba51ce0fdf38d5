package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Asset is a banner image recorded for a channel/blueprint owner.
type Asset struct {
	ID          int64
	ChannelSlug string
	BlueprintID string
	URL         string
	Active      bool
	CreatedAt   int64
}

// AddAsset records a new active asset for the owner.
func (db *DB) AddAsset(channelSlug, blueprintID, url string, now time.Time) (*Asset, error) {
	createdAt := now.UnixMilli()
	result, err := db.Exec(`
		INSERT INTO assets (channel_slug, blueprint_id, url, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, channelSlug, blueprintID, url, createdAt)
	if err != nil {
		return nil, fmt.Errorf("add asset: %w", err)
	}

	id, _ := result.LastInsertId()
	return &Asset{
		ID:          id,
		ChannelSlug: channelSlug,
		BlueprintID: blueprintID,
		URL:         url,
		Active:      true,
		CreatedAt:   createdAt,
	}, nil
}

// ListActiveAssets returns the owner's active assets, newest first.
func (db *DB) ListActiveAssets(channelSlug, blueprintID string) ([]Asset, error) {
	rows, err := db.Query(`
		SELECT id, channel_slug, blueprint_id, url, active, created_at
		FROM assets WHERE channel_slug = ? AND blueprint_id = ? AND active = 1
		ORDER BY created_at DESC, id
	`, channelSlug, blueprintID)
	if err != nil {
		return nil, fmt.Errorf("list active assets: %w", err)
	}
	defer rows.Close()
	return scanAssets(rows)
}

// ListAssets returns every asset of the owner, active or not, newest first.
func (db *DB) ListAssets(channelSlug, blueprintID string) ([]Asset, error) {
	rows, err := db.Query(`
		SELECT id, channel_slug, blueprint_id, url, active, created_at
		FROM assets WHERE channel_slug = ? AND blueprint_id = ?
		ORDER BY created_at DESC, id
	`, channelSlug, blueprintID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	return scanAssets(rows)
}

// CountActiveAssets returns how many active assets the owner has.
func (db *DB) CountActiveAssets(channelSlug, blueprintID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM assets WHERE channel_slug = ? AND blueprint_id = ? AND active = 1
	`, channelSlug, blueprintID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active assets: %w", err)
	}
	return count, nil
}

// DeactivateAssets flips the given assets to inactive and returns how many
// were still active.
func (db *DB) DeactivateAssets(ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := db.Exec(`UPDATE assets SET active = 0 WHERE active = 1 AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate assets: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanAssets(rows *sql.Rows) ([]Asset, error) {
	var assets []Asset
	for rows.Next() {
		var a Asset
		var active int
		if err := rows.Scan(&a.ID, &a.ChannelSlug, &a.BlueprintID, &a.URL, &active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Active = active == 1
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
