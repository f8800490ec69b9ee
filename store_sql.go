package classifier

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	categoriesTable               = "categories"
	tokensTable                   = "tokens"
	categoriesQuery               = `SELECT "id", "name", "total", "document_count" FROM ` + categoriesTable + ` ORDER BY "id"`
	insertCategoryQuery           = `INSERT OR IGNORE INTO ` + categoriesTable + ` ("name", "total", "document_count") VALUES (?, 0, 0)`
	restoreCategoryQuery          = `INSERT INTO ` + categoriesTable + ` ("name", "total", "document_count") VALUES (?, ?, ?)`
	updateCategoryQuery           = `UPDATE ` + categoriesTable + ` SET "document_count" = "document_count" + 1, "total" = "total" + ? WHERE "name" = ?`
	categoryIDQuery               = `SELECT "id" FROM ` + categoriesTable + ` WHERE "name" = ?`
	updateOrInsertTokenCountQuery = `INSERT OR REPLACE INTO ` + tokensTable + ` ("category_id", "token", "count") VALUES (?, ?, ? + COALESCE((SELECT "count" FROM ` + tokensTable + ` WHERE "category_id" = ? AND "token" = ?), 0))`
	insertTokenQuery              = `INSERT INTO ` + tokensTable + ` ("category_id", "token", "count") VALUES (?, ?, ?)`
	vocabularySizeQuery           = `SELECT COUNT(DISTINCT "token") FROM ` + tokensTable
	vocabularyQuery               = `SELECT DISTINCT "token" FROM ` + tokensTable + ` ORDER BY "token"`
	allTokensQuery                = `SELECT "category_id", "token", "count" FROM ` + tokensTable
	tokensQuery                   = `SELECT "category_id", "token", "count" FROM ` + tokensTable + ` WHERE "category_id" IN (%s) AND "token" IN (%s)`

	// keeps each IN list under SQLite's host parameter limit
	maxQueryTokens = 500
)

// SQLSchema creates the tables used by the SQL store.
var SQLSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + categoriesTable + ` (
        id INTEGER PRIMARY KEY ASC,
        name TEXT NOT NULL,
        total INTEGER NOT NULL DEFAULT 0,
        document_count INTEGER NOT NULL DEFAULT 0,
        UNIQUE(name))`,
	`CREATE TABLE IF NOT EXISTS ` + tokensTable + ` (
        id INTEGER PRIMARY KEY ASC,
        category_id INTEGER NOT NULL,
        token TEXT NOT NULL,
        count INTEGER NOT NULL DEFAULT 0,
        FOREIGN KEY(category_id) REFERENCES categories(id),
        UNIQUE(category_id, token))`,
}

// InitSQLSchema creates the store tables if they don't exist yet
func InitSQLSchema(db *sql.DB) error {
	for _, q := range SQLSchema {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

type sqlCategory struct {
	id            int64
	name          string
	total         int64
	documentCount int64
}

type sqlStore struct {
	db                  *sql.DB
	categoriesQuery     *sql.Stmt
	insertCategoryQuery *sql.Stmt
}

// NewSQLStore returns an SQL database backed Store. The tables from SQLSchema must exist.
func NewSQLStore(db *sql.DB) (Store, error) {
	s := &sqlStore{
		db: db,
	}
	var err error
	s.categoriesQuery, err = db.Prepare(categoriesQuery)
	if err != nil {
		return nil, err
	}
	s.insertCategoryQuery, err = db.Prepare(insertCategoryQuery)
	return s, err
}

func (s *sqlStore) categories() ([]sqlCategory, error) {
	rows, err := s.categoriesQuery.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []sqlCategory
	for rows.Next() {
		var c sqlCategory
		if err := rows.Scan(&c.id, &c.name, &c.total, &c.documentCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *sqlStore) Categories() ([]string, error) {
	cats, err := s.categories()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.name
	}
	return names, nil
}

func (s *sqlStore) AddCategory(name string) error {
	_, err := s.insertCategoryQuery.Exec(name)
	return err
}

func (s *sqlStore) AddDocument(category string, tokens []string) error {
	counts := make(map[string]int64, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t]++
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(updateCategoryQuery, int64(len(tokens)), category)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		tx.Rollback()
		return err
	} else if n != 1 {
		if err := tx.Rollback(); err != nil {
			return err
		}
		return ErrCategoryDoesNotExist(category)
	}
	var categoryID int64
	if err := tx.QueryRow(categoryIDQuery, category).Scan(&categoryID); err != nil {
		tx.Rollback()
		return err
	}
	for _, t := range order {
		res, err := tx.Exec(updateOrInsertTokenCountQuery, categoryID, t, counts[t], categoryID, t)
		if err != nil {
			tx.Rollback()
			return err
		} else if n, err := res.RowsAffected(); err != nil {
			tx.Rollback()
			return err
		} else if n < 1 {
			if err := tx.Rollback(); err != nil {
				return err
			}
			return errors.New("classifier: failed to update token")
		}
	}
	return tx.Commit()
}

func (s *sqlStore) Totals() (map[string]int64, error) {
	cats, err := s.categories()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(cats))
	for _, c := range cats {
		totals[c.name] = c.total
	}
	return totals, nil
}

func (s *sqlStore) VocabularySize() (int, error) {
	var n int
	err := s.db.QueryRow(vocabularySizeQuery).Scan(&n)
	return n, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *sqlStore) TokenCounts(categories, tokens []string) (map[string]map[string]int64, error) {
	cats, err := s.categories()
	if err != nil {
		return nil, err
	}
	categoryMap := make(map[string]int64, len(cats))
	revCategoryMap := make(map[int64]string, len(cats))
	for _, c := range cats {
		categoryMap[c.name] = c.id
		revCategoryMap[c.id] = c.name
	}
	if categories == nil {
		categories = make([]string, len(cats))
		for i, c := range cats {
			categories[i] = c.name
		}
	}
	categoryIDs := make([]interface{}, len(categories))
	for i, c := range categories {
		id, ok := categoryMap[c]
		if !ok {
			return nil, ErrCategoryDoesNotExist(c)
		}
		categoryIDs[i] = id
	}

	res := make(map[string]map[string]int64, len(categories))
	for _, c := range categories {
		res[c] = make(map[string]int64, len(tokens))
		for _, t := range tokens {
			res[c][t] = 0
		}
	}
	if len(categories) == 0 || len(tokens) == 0 {
		return res, nil
	}

	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	for start := 0; start < len(unique); start += maxQueryTokens {
		end := start + maxQueryTokens
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]
		args := make([]interface{}, 0, len(categoryIDs)+len(chunk))
		args = append(args, categoryIDs...)
		for _, t := range chunk {
			args = append(args, t)
		}
		query := fmt.Sprintf(tokensQuery, placeholders(len(categoryIDs)), placeholders(len(chunk)))
		if err := s.scanTokenCounts(query, args, revCategoryMap, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *sqlStore) scanTokenCounts(query string, args []interface{}, names map[int64]string, res map[string]map[string]int64) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var categoryID int64
		var token string
		var count int64
		if err := rows.Scan(&categoryID, &token, &count); err != nil {
			return err
		}
		if c := names[categoryID]; c != "" {
			if m, ok := res[c]; ok {
				m[token] = count
			}
		}
	}
	return rows.Err()
}

func (s *sqlStore) Snapshot() (*Snapshot, error) {
	cats, err := s.categories()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Categories: make([]CategoryStats, len(cats))}
	byID := make(map[int64]*CategoryStats, len(cats))
	for i, c := range cats {
		snap.Categories[i] = CategoryStats{
			Name:      c.name,
			Total:     c.total,
			Documents: c.documentCount,
			WordCount: make(map[string]int64),
		}
		byID[c.id] = &snap.Categories[i]
	}

	rows, err := s.db.Query(allTokensQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var categoryID, count int64
		var token string
		if err := rows.Scan(&categoryID, &token, &count); err != nil {
			return nil, err
		}
		if cs := byID[categoryID]; cs != nil {
			cs.WordCount[token] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.db.Query(vocabularyQuery)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	snap.Vocab = make([]string, 0)
	for vrows.Next() {
		var token string
		if err := vrows.Scan(&token); err != nil {
			return nil, err
		}
		snap.Vocab = append(snap.Vocab, token)
	}
	return snap, vrows.Err()
}

// Restore replaces all rows. The vocabulary is derived from the tokens table,
// so snap.Vocab is not stored separately.
func (s *sqlStore) Restore(snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM ` + tokensTable); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM ` + categoriesTable); err != nil {
		tx.Rollback()
		return err
	}
	for _, cs := range snap.Categories {
		res, err := tx.Exec(restoreCategoryQuery, cs.Name, cs.Total, cs.Documents)
		if err != nil {
			tx.Rollback()
			return err
		}
		categoryID, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return err
		}
		for t, n := range cs.WordCount {
			if _, err := tx.Exec(insertTokenQuery, categoryID, t, n); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}
