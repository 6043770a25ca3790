package loader

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/vanderheijden86/peektree/pkg/model"

	_ "modernc.org/sqlite"
)

// Schema is the SQLite layout read by LoadSQLite and written by SaveSQLite.
// Levels and nodes keep their canonical order through the position columns.
const Schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS levels (
	id             TEXT PRIMARY KEY,
	position       INTEGER NOT NULL,
	parent_node_id TEXT,
	label          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT PRIMARY KEY,
	level_id    TEXT NOT NULL REFERENCES levels(id),
	position    INTEGER NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	leaf        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_nodes_level ON nodes(level_id, position);
`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// LoadSQLite reads a hierarchy from the levels and nodes tables.
func LoadSQLite(path string) (model.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return model.Document{}, err
	}
	db, err := openDB(path)
	if err != nil {
		return model.Document{}, err
	}
	defer db.Close()

	doc := model.Document{Title: titleFromFilename(path)}
	if err := readMeta(db, &doc); err != nil {
		return model.Document{}, fmt.Errorf("read meta: %w", err)
	}

	rows, err := db.Query(`SELECT id, COALESCE(parent_node_id, ''), label FROM levels ORDER BY position, id`)
	if err != nil {
		return model.Document{}, fmt.Errorf("query levels: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var lvl model.LevelSpec
		if err := rows.Scan(&lvl.ID, &lvl.ParentNodeID, &lvl.Label); err != nil {
			rows.Close()
			return model.Document{}, fmt.Errorf("scan level: %w", err)
		}
		index[lvl.ID] = len(doc.Levels)
		doc.Levels = append(doc.Levels, lvl)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.Document{}, err
	}
	rows.Close()

	rows, err = db.Query(`SELECT id, level_id, label, description, leaf FROM nodes ORDER BY position, id`)
	if err != nil {
		return model.Document{}, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ns      model.NodeSpec
			levelID string
			leaf    int
		)
		if err := rows.Scan(&ns.ID, &levelID, &ns.Label, &ns.Description, &leaf); err != nil {
			return model.Document{}, fmt.Errorf("scan node: %w", err)
		}
		ns.Leaf = leaf != 0
		i, ok := index[levelID]
		if !ok {
			return model.Document{}, fmt.Errorf("node %q references unknown level %q", ns.ID, levelID)
		}
		doc.Levels[i].Nodes = append(doc.Levels[i].Nodes, ns)
	}
	return doc, rows.Err()
}

func readMeta(db *sql.DB, doc *model.Document) error {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='meta'
	`).Scan(&count)
	if err != nil || count == 0 {
		return err
	}
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		switch k {
		case "title":
			doc.Title = v
		case "root_label":
			doc.RootLabel = v
		}
	}
	return rows.Err()
}

// SaveSQLite writes doc into a fresh database at path, replacing any
// existing hierarchy tables.
func SaveSQLite(path string, doc model.Document) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := writeDocument(tx, doc); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func writeDocument(tx *sql.Tx, doc model.Document) error {
	for _, stmt := range []string{"DROP TABLE IF EXISTS nodes", "DROP TABLE IF EXISTS levels", "DROP TABLE IF EXISTS meta"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("reset schema: %w", err)
		}
	}
	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	meta := map[string]string{"title": doc.Title, "root_label": doc.RootLabel}
	for k, v := range meta {
		if v == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	for i, lvl := range doc.Levels {
		id := lvl.ID
		if id == "" {
			id = fmt.Sprintf("level-%d", i)
		}
		var parent any
		if lvl.ParentNodeID != "" {
			parent = lvl.ParentNodeID
		}
		if _, err := tx.Exec(`INSERT INTO levels (id, position, parent_node_id, label) VALUES (?, ?, ?, ?)`,
			id, i, parent, lvl.Label); err != nil {
			return fmt.Errorf("insert level %s: %w", id, err)
		}
		for j, n := range lvl.Nodes {
			leaf := 0
			if n.Leaf {
				leaf = 1
			}
			if _, err := tx.Exec(`INSERT INTO nodes (id, level_id, position, label, description, leaf) VALUES (?, ?, ?, ?, ?, ?)`,
				n.ID, id, j, n.Label, n.Description, leaf); err != nil {
				return fmt.Errorf("insert node %s: %w", n.ID, err)
			}
		}
	}
	return nil
}
