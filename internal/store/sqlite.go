package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicgraph/orgscope/internal/model"
)

// SQLiteStore implements ProfileStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	norm_name     TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	ideology      TEXT NOT NULL DEFAULT '',
	founding_date TEXT NOT NULL DEFAULT '',
	headquarters  TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	provenance    TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leaders (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	organization_id   INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	name              TEXT NOT NULL,
	position          TEXT NOT NULL DEFAULT '',
	background        TEXT NOT NULL DEFAULT '',
	education         TEXT NOT NULL DEFAULT '',
	political_history TEXT NOT NULL DEFAULT '',
	achievements      TEXT NOT NULL DEFAULT '',
	source_url        TEXT NOT NULL DEFAULT '',
	UNIQUE (organization_id, name)
);

CREATE TABLE IF NOT EXISTS news_articles (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	summary         TEXT NOT NULL DEFAULT '',
	source_url      TEXT NOT NULL,
	published_at    DATETIME,
	UNIQUE (organization_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_leaders_org ON leaders(organization_id);
CREATE INDEX IF NOT EXISTS idx_news_org ON news_articles(organization_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProfile(ctx context.Context, name string) (*model.OrganizationProfile, error) {
	p := &model.OrganizationProfile{}
	var provenance string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, ideology, founding_date, headquarters, website, provenance, created_at, updated_at
		 FROM organizations WHERE norm_name = ?`,
		model.NormalizeName(name),
	).Scan(&p.ID, &p.Name, &p.Description, &p.Ideology, &p.FoundingDate,
		&p.Headquarters, &p.Website, &provenance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get profile %s", name)
	}

	if provenance != "" {
		if err := json.Unmarshal([]byte(provenance), &p.Provenance); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal provenance")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, position, background, education, political_history, achievements, source_url
		 FROM leaders WHERE organization_id = ? ORDER BY name`,
		p.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: query leaders")
	}
	defer rows.Close()
	for rows.Next() {
		l := model.LeaderRecord{Organization: p.Name}
		if err := rows.Scan(&l.ID, &l.Name, &l.Position, &l.Background,
			&l.Education, &l.PoliticalHistory, &l.Achievements, &l.SourceURL); err != nil {
			return nil, eris.Wrap(err, "store: scan leader")
		}
		p.Leaders = append(p.Leaders, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate leaders")
	}

	newsRows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, source_url, published_at
		 FROM news_articles WHERE organization_id = ?
		 ORDER BY published_at DESC, title`,
		p.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: query news")
	}
	defer newsRows.Close()
	for newsRows.Next() {
		n := model.NewsItem{Organization: p.Name}
		var published sql.NullTime
		if err := newsRows.Scan(&n.ID, &n.Title, &n.Summary, &n.SourceURL, &published); err != nil {
			return nil, eris.Wrap(err, "store: scan news")
		}
		if published.Valid {
			t := published.Time
			n.PublishedAt = &t
		}
		p.News = append(p.News, n)
	}
	if err := newsRows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate news")
	}

	return p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.OrganizationProfile) (*model.OrganizationProfile, error) {
	provenance := []byte("{}")
	if p.Provenance != nil {
		var err error
		provenance, err = json.Marshal(p.Provenance)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal provenance")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	normName := model.NormalizeName(p.Name)
	now := time.Now().UTC()

	out := *p
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, norm_name, description, ideology, founding_date, headquarters, website, provenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (norm_name) DO UPDATE SET
			description   = excluded.description,
			ideology      = excluded.ideology,
			founding_date = excluded.founding_date,
			headquarters  = excluded.headquarters,
			website       = excluded.website,
			provenance    = excluded.provenance,
			updated_at    = excluded.updated_at
		RETURNING id, name, created_at, updated_at`,
		p.Name, normName, p.Description, p.Ideology, p.FoundingDate,
		p.Headquarters, p.Website, string(provenance), now, now,
	).Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "store: upsert organization %s", p.Name)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaders WHERE organization_id = ?`, out.ID); err != nil {
		return nil, eris.Wrap(err, "store: clear leaders")
	}
	out.Leaders = append([]model.LeaderRecord(nil), p.Leaders...)
	for i := range out.Leaders {
		l := &out.Leaders[i]
		l.Organization = out.Name
		res, err := tx.ExecContext(ctx, `
			INSERT INTO leaders (organization_id, name, position, background, education, political_history, achievements, source_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			out.ID, l.Name, l.Position, l.Background, l.Education,
			l.PoliticalHistory, l.Achievements, l.SourceURL,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert leader %s", l.Name)
		}
		l.ID, _ = res.LastInsertId()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM news_articles WHERE organization_id = ?`, out.ID); err != nil {
		return nil, eris.Wrap(err, "store: clear news")
	}
	out.News = append([]model.NewsItem(nil), p.News...)
	for i := range out.News {
		n := &out.News[i]
		n.Organization = out.Name
		res, err := tx.ExecContext(ctx, `
			INSERT INTO news_articles (organization_id, title, summary, source_url, published_at)
			VALUES (?, ?, ?, ?, ?)`,
			out.ID, n.Title, n.Summary, n.SourceURL, n.PublishedAt,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert news %s", n.SourceURL)
		}
		n.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "store: commit upsert")
	}
	return &out, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, filter ListFilter) ([]model.OrganizationProfile, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, name, description, ideology, founding_date, headquarters, website, provenance, created_at, updated_at
		FROM organizations`
	var args []any
	if filter.Query != "" {
		query += ` WHERE name LIKE '%' || ? || '%' COLLATE NOCASE`
		args = append(args, filter.Query)
	}
	query += ` ORDER BY name LIMIT ` + strconv.Itoa(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var out []model.OrganizationProfile
	for rows.Next() {
		var p model.OrganizationProfile
		var provenance string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Ideology, &p.FoundingDate,
			&p.Headquarters, &p.Website, &provenance, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan profile")
		}
		if provenance != "" {
			_ = json.Unmarshal([]byte(provenance), &p.Provenance)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate profiles")
}
