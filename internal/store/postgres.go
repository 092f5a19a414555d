package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicgraph/orgscope/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements ProfileStore using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	norm_name     TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	ideology      TEXT NOT NULL DEFAULT '',
	founding_date TEXT NOT NULL DEFAULT '',
	headquarters  TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	provenance    JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leaders (
	id                BIGSERIAL PRIMARY KEY,
	organization_id   BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
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
	id              BIGSERIAL PRIMARY KEY,
	organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	summary         TEXT NOT NULL DEFAULT '',
	source_url      TEXT NOT NULL,
	published_at    TIMESTAMPTZ,
	UNIQUE (organization_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_leaders_org ON leaders(organization_id);
CREATE INDEX IF NOT EXISTS idx_news_org ON news_articles(organization_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const orgColumns = `id, name, description, ideology, founding_date, headquarters, website, provenance, created_at, updated_at`

func (s *PostgresStore) GetProfile(ctx context.Context, name string) (*model.OrganizationProfile, error) {
	p := &model.OrganizationProfile{}
	var provenance []byte
	err := s.pool.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE norm_name = $1`,
		model.NormalizeName(name),
	).Scan(&p.ID, &p.Name, &p.Description, &p.Ideology, &p.FoundingDate,
		&p.Headquarters, &p.Website, &provenance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get profile %s", name)
	}

	if len(provenance) > 0 {
		if err := json.Unmarshal(provenance, &p.Provenance); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal provenance")
		}
	}

	if err := s.loadLeaders(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadNews(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) loadLeaders(ctx context.Context, p *model.OrganizationProfile) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, position, background, education, political_history, achievements, source_url
		 FROM leaders WHERE organization_id = $1 ORDER BY name`,
		p.ID,
	)
	if err != nil {
		return eris.Wrap(err, "store: query leaders")
	}
	defer rows.Close()

	for rows.Next() {
		l := model.LeaderRecord{Organization: p.Name}
		if err := rows.Scan(&l.ID, &l.Name, &l.Position, &l.Background,
			&l.Education, &l.PoliticalHistory, &l.Achievements, &l.SourceURL); err != nil {
			return eris.Wrap(err, "store: scan leader")
		}
		p.Leaders = append(p.Leaders, l)
	}
	return eris.Wrap(rows.Err(), "store: iterate leaders")
}

func (s *PostgresStore) loadNews(ctx context.Context, p *model.OrganizationProfile) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, summary, source_url, published_at
		 FROM news_articles WHERE organization_id = $1
		 ORDER BY published_at DESC NULLS LAST, title`,
		p.ID,
	)
	if err != nil {
		return eris.Wrap(err, "store: query news")
	}
	defer rows.Close()

	for rows.Next() {
		n := model.NewsItem{Organization: p.Name}
		if err := rows.Scan(&n.ID, &n.Title, &n.Summary, &n.SourceURL, &n.PublishedAt); err != nil {
			return eris.Wrap(err, "store: scan news")
		}
		p.News = append(p.News, n)
	}
	return eris.Wrap(rows.Err(), "store: iterate news")
}

// UpsertProfile writes the profile in one transaction. An advisory lock
// on the normalized name serializes concurrent writers for the same
// organization across processes; the lock releases with the transaction.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.OrganizationProfile) (*model.OrganizationProfile, error) {
	provenance, err := json.Marshal(p.Provenance)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal provenance")
	}
	if p.Provenance == nil {
		provenance = []byte("{}")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "store: begin upsert")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	normName := model.NormalizeName(p.Name)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, normName); err != nil {
		return nil, eris.Wrap(err, "store: advisory lock")
	}

	out := *p
	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (name, norm_name, description, ideology, founding_date, headquarters, website, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (norm_name) DO UPDATE SET
			description   = EXCLUDED.description,
			ideology      = EXCLUDED.ideology,
			founding_date = EXCLUDED.founding_date,
			headquarters  = EXCLUDED.headquarters,
			website       = EXCLUDED.website,
			provenance    = EXCLUDED.provenance,
			updated_at    = now()
		RETURNING id, name, created_at, updated_at`,
		p.Name, normName, p.Description, p.Ideology, p.FoundingDate,
		p.Headquarters, p.Website, provenance,
	).Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "store: upsert organization %s", p.Name)
	}

	// Collections are replaced wholesale; the reconciler already merged
	// them against the prior state.
	if _, err := tx.Exec(ctx, `DELETE FROM leaders WHERE organization_id = $1`, out.ID); err != nil {
		return nil, eris.Wrap(err, "store: clear leaders")
	}
	out.Leaders = append([]model.LeaderRecord(nil), p.Leaders...)
	for i := range out.Leaders {
		l := &out.Leaders[i]
		l.Organization = out.Name
		err := tx.QueryRow(ctx, `
			INSERT INTO leaders (organization_id, name, position, background, education, political_history, achievements, source_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			out.ID, l.Name, l.Position, l.Background, l.Education,
			l.PoliticalHistory, l.Achievements, l.SourceURL,
		).Scan(&l.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert leader %s", l.Name)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM news_articles WHERE organization_id = $1`, out.ID); err != nil {
		return nil, eris.Wrap(err, "store: clear news")
	}
	out.News = append([]model.NewsItem(nil), p.News...)
	for i := range out.News {
		n := &out.News[i]
		n.Organization = out.Name
		err := tx.QueryRow(ctx, `
			INSERT INTO news_articles (organization_id, title, summary, source_url, published_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			out.ID, n.Title, n.Summary, n.SourceURL, n.PublishedAt,
		).Scan(&n.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "store: insert news %s", n.SourceURL)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "store: commit upsert")
	}
	return &out, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ListFilter) ([]model.OrganizationProfile, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + orgColumns + ` FROM organizations`
	var args []any
	if filter.Query != "" {
		query += ` WHERE name ILIKE '%' || $1 || '%'`
		args = append(args, filter.Query)
	}
	query += ` ORDER BY name LIMIT ` + strconv.Itoa(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var out []model.OrganizationProfile
	for rows.Next() {
		var p model.OrganizationProfile
		var provenance []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Ideology, &p.FoundingDate,
			&p.Headquarters, &p.Website, &provenance, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan profile")
		}
		if len(provenance) > 0 {
			_ = json.Unmarshal(provenance, &p.Provenance)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate profiles")
}
