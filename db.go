package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kjoleskaps (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		is_shared  INTEGER NOT NULL DEFAULT 0,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_kjoleskaps_user ON kjoleskaps(user_id);

	CREATE TABLE IF NOT EXISTS food_items (
		id              TEXT PRIMARY KEY,
		kjoleskap_id    TEXT NOT NULL,
		name            TEXT NOT NULL,
		category        TEXT NOT NULL DEFAULT '',
		quantity        REAL NOT NULL DEFAULT 1,
		unit            TEXT NOT NULL DEFAULT '',
		expiration_date TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'fresh',
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_food_items_kjoleskap ON food_items(kjoleskap_id);
	CREATE INDEX IF NOT EXISTS idx_food_items_expiration ON food_items(expiration_date);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: add image_url column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('food_items') WHERE name = 'image_url'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE food_items ADD COLUMN image_url TEXT NOT NULL DEFAULT ''`)
	}

	return db, nil
}

// --- Kjoleskaps ---

func CreateKjoleskap(db *sql.DB, name, userID string, isShared, isDefault bool) (Kjoleskap, error) {
	k := Kjoleskap{
		ID:        uuid.NewString(),
		Name:      name,
		UserID:    userID,
		IsShared:  isShared,
		IsDefault: isDefault,
		CreatedAt: time.Now().UTC(),
	}
	k.UpdatedAt = k.CreatedAt
	_, err := db.Exec(
		`INSERT INTO kjoleskaps (id, name, user_id, is_shared, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Name, k.UserID, k.IsShared, k.IsDefault, k.CreatedAt, k.UpdatedAt,
	)
	return k, err
}

func GetKjoleskapByID(db *sql.DB, id string) (Kjoleskap, error) {
	var k Kjoleskap
	err := db.QueryRow(
		`SELECT id, name, user_id, is_shared, is_default, created_at, updated_at
		 FROM kjoleskaps WHERE id = ?`,
		id,
	).Scan(&k.ID, &k.Name, &k.UserID, &k.IsShared, &k.IsDefault, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

func GetKjoleskapsByUser(db *sql.DB, userID string) ([]Kjoleskap, error) {
	rows, err := db.Query(
		`SELECT id, name, user_id, is_shared, is_default, created_at, updated_at
		 FROM kjoleskaps WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Kjoleskap
	for rows.Next() {
		var k Kjoleskap
		if err := rows.Scan(&k.ID, &k.Name, &k.UserID, &k.IsShared, &k.IsDefault, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeleteKjoleskap removes a refrigerator and its items in one transaction.
func DeleteKjoleskap(db *sql.DB, id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM food_items WHERE kjoleskap_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM kjoleskaps WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Food items ---

// InsertFoodItems persists one batch in a single transaction, assigning ids
// and timestamps. The whole batch succeeds or none of it does.
func InsertFoodItems(db *sql.DB, items []FoodItem) ([]FoodItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO food_items (id, kjoleskap_id, name, category, quantity, unit, expiration_date, status, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := make([]FoodItem, 0, len(items))
	for _, item := range items {
		item.ID = uuid.NewString()
		item.CreatedAt = now
		item.UpdatedAt = now
		if item.Status == "" {
			item.Status = StatusFresh
		}
		if _, err := stmt.Exec(
			item.ID, item.KjoleskapID, item.Name, item.Category, item.Quantity,
			item.Unit, item.ExpirationDate, item.Status, item.ImageURL,
			item.CreatedAt, item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		inserted = append(inserted, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func GetFoodItemsByKjoleskap(db *sql.DB, kjoleskapID string) ([]FoodItem, error) {
	rows, err := db.Query(
		`SELECT id, kjoleskap_id, name, category, quantity, unit, expiration_date, status, image_url, created_at, updated_at
		 FROM food_items WHERE kjoleskap_id = ? ORDER BY created_at, id`,
		kjoleskapID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FoodItem
	for rows.Next() {
		var item FoodItem
		if err := rows.Scan(
			&item.ID, &item.KjoleskapID, &item.Name, &item.Category, &item.Quantity,
			&item.Unit, &item.ExpirationDate, &item.Status, &item.ImageURL,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func GetFoodItemByID(db *sql.DB, id string) (FoodItem, error) {
	var item FoodItem
	err := db.QueryRow(
		`SELECT id, kjoleskap_id, name, category, quantity, unit, expiration_date, status, image_url, created_at, updated_at
		 FROM food_items WHERE id = ?`,
		id,
	).Scan(
		&item.ID, &item.KjoleskapID, &item.Name, &item.Category, &item.Quantity,
		&item.Unit, &item.ExpirationDate, &item.Status, &item.ImageURL,
		&item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}

func UpdateFoodItem(db *sql.DB, item FoodItem) error {
	res, err := db.Exec(
		`UPDATE food_items
		 SET name = ?, category = ?, quantity = ?, unit = ?, expiration_date = ?, status = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Category, item.Quantity, item.Unit,
		item.ExpirationDate, item.Status, item.ImageURL, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func DeleteFoodItemByID(db *sql.DB, id string) error {
	_, err := db.Exec(`DELETE FROM food_items WHERE id = ?`, id)
	return err
}

// UpdateExpiryStatuses reclassifies every dated item against now and rewrites
// rows whose status changed. Returns the number of rows updated.
func UpdateExpiryStatuses(db *sql.DB, warnDays int, now time.Time) (int, error) {
	rows, err := db.Query(`SELECT id, expiration_date, status FROM food_items WHERE expiration_date <> ''`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type change struct {
		id     string
		status string
	}
	var changes []change
	for rows.Next() {
		var id, expirationDate, status string
		if err := rows.Scan(&id, &expirationDate, &status); err != nil {
			return 0, err
		}
		if next := ExpiryStatusAt(expirationDate, warnDays, now); next != status {
			changes = append(changes, change{id: id, status: next})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE food_items SET status = ?, updated_at = ? WHERE id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range changes {
		if _, err := stmt.Exec(c.status, now, c.id); err != nil {
			return 0, fmt.Errorf("updating item %s: %w", c.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(changes), nil
}
