// Package indexcache implements the Index Cache (C7): a SQLite-backed,
// LZ4-compressed persistence layer for per-repo SymbolIndex snapshots,
// fronted by an in-process LRU so repeated lookups within one task never
// touch disk twice.
package indexcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pierrec/lz4/v4"
	_ "modernc.org/sqlite"

	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/units"
)

// logPersistSizeThreshold is the compressed-payload size at or above which
// a persisted index is logged at Info, so an operator scanning logs at
// default level still sees unusually large repos; smaller payloads are
// persisted without a log line.
const logPersistSizeThreshold = 4 * units.MiB

const schema = `
CREATE TABLE IF NOT EXISTS symbol_index_cache (
	cache_key    TEXT PRIMARY KEY,
	repo_root    TEXT NOT NULL,
	commit_hash  TEXT NOT NULL,
	payload      BLOB NOT NULL,
	built_at_unix INTEGER NOT NULL
);
`

// BuildFunc builds a fresh SymbolIndex for repoRoot at its current HEAD.
// Supplied by the caller (typically pkg/javaidx.Build) so this package has
// no parser dependency.
type BuildFunc func(ctx context.Context, repoRoot string) (*model.SymbolIndex, error)

// Store is a disk-backed, compressed index cache keyed by
// sha256(canonical_root|commit_hash), satisfying the crossproject.IndexProvider
// contract so it can be handed directly to the Multi-Project Tracer.
type Store struct {
	db      *sqlx.DB
	mem     *MemLRU
	build   BuildFunc
	headFn  func(ctx context.Context, repoRoot string) (string, error)
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Options configures a new Store.
type Options struct {
	// DBPath is the SQLite file location, e.g. "<cache_dir>/index_cache.db".
	DBPath string
	// MemCapacity bounds the in-process LRU front-cache. 0 means 32.
	MemCapacity int
	Logger      *slog.Logger
	// HeadFunc resolves repoRoot's current commit hash, normally
	// gitutil.Repo.HeadCommit.
	HeadFunc func(ctx context.Context, repoRoot string) (string, error)
	Build    BuildFunc
}

// Open creates (if needed) the schema at opts.DBPath and returns a ready
// Store.
func Open(opts Options) (*Store, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("%w: indexcache: DBPath required", model.ErrCache)
	}

	if opts.HeadFunc == nil || opts.Build == nil {
		return nil, fmt.Errorf("%w: indexcache: HeadFunc and Build are required", model.ErrCache)
	}

	db, err := sqlx.Open("sqlite", opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: indexcache: open %s: %w", model.ErrCache, opts.DBPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck

		return nil, fmt.Errorf("%w: indexcache: migrate: %w", model.ErrCache, err)
	}

	capacity := opts.MemCapacity
	if capacity <= 0 {
		capacity = 32
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:      db,
		mem:     NewMemLRU(capacity),
		build:   opts.Build,
		headFn:  opts.HeadFunc,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// cacheKey implements P-CacheDeterminism: sha256(canonical_root|commit_hash)
// hex-encoded, so the same (root, commit) pair always maps to the same row
// regardless of process or call order.
func cacheKey(repoRoot, commitHash string) string {
	canonical := filepath.Clean(repoRoot)
	sum := sha256.Sum256([]byte(canonical + "|" + commitHash))

	return hex.EncodeToString(sum[:])
}

type row struct {
	CacheKey    string `db:"cache_key"`
	RepoRoot    string `db:"repo_root"`
	CommitHash  string `db:"commit_hash"`
	Payload     []byte `db:"payload"`
	BuiltAtUnix int64  `db:"built_at_unix"`
}

// GetOrBuild satisfies crossproject.IndexProvider: it resolves repoRoot's
// current HEAD, serves the in-process LRU or the SQLite row keyed by that
// commit when present, and otherwise builds a fresh index via the
// configured BuildFunc and persists it before returning.
func (s *Store) GetOrBuild(ctx context.Context, repoRoot string) (*model.SymbolIndex, error) {
	commit, err := s.headFn(ctx, repoRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: indexcache: resolve head for %s: %w", model.ErrCache, repoRoot, err)
	}

	key := cacheKey(repoRoot, commit)

	if idx, ok := s.mem.Get(key); ok {
		return idx, nil
	}

	idx, err := s.loadRow(ctx, key)
	if err == nil {
		s.mem.Put(key, idx)

		return idx, nil
	}

	if err != sql.ErrNoRows {
		s.logger.Warn("indexcache: read failed, rebuilding", "repo_root", repoRoot, "error", err)
	}

	fresh, buildErr := s.build(ctx, repoRoot)
	if buildErr != nil {
		return nil, buildErr
	}

	if persistErr := s.persist(ctx, key, repoRoot, commit, fresh); persistErr != nil {
		s.logger.Warn("indexcache: persist failed, continuing with in-memory index", "repo_root", repoRoot, "error", persistErr)
	}

	s.mem.Put(key, fresh)

	return fresh, nil
}

func (s *Store) loadRow(ctx context.Context, key string) (*model.SymbolIndex, error) {
	var r row

	err := s.db.GetContext(ctx, &r, `SELECT cache_key, repo_root, commit_hash, payload, built_at_unix
		FROM symbol_index_cache WHERE cache_key = ?`, key)
	if err != nil {
		return nil, err
	}

	plain, err := decompress(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: indexcache: decompress %s: %w", model.ErrCache, key, err)
	}

	var idx model.SymbolIndex
	if err := json.Unmarshal(plain, &idx); err != nil {
		return nil, fmt.Errorf("%w: indexcache: decode %s: %w", model.ErrCache, key, err)
	}

	return &idx, nil
}

func (s *Store) persist(ctx context.Context, key, repoRoot, commit string, idx *model.SymbolIndex) error {
	plain, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("%w: indexcache: encode: %w", model.ErrCache, err)
	}

	compressed, err := compress(plain)
	if err != nil {
		return fmt.Errorf("%w: indexcache: compress: %w", model.ErrCache, err)
	}

	if len(compressed) >= logPersistSizeThreshold {
		s.logger.Info("indexcache: persisting large index", "repo_root", repoRoot,
			"compressed_bytes", len(compressed), "compressed_mib", len(compressed)/units.MiB)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO symbol_index_cache
		(cache_key, repo_root, commit_hash, payload, built_at_unix)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, built_at_unix = excluded.built_at_unix`,
		key, repoRoot, commit, compressed, s.nowFunc().Unix())
	if err != nil {
		return fmt.Errorf("%w: indexcache: insert: %w", model.ErrCache, err)
	}

	return nil
}

// Invalidate drops the cached row for the given (repoRoot, commitHash)
// pair, used when a build is known to be stale (e.g. a forced re-index via
// the CLI's --force-reindex flag).
func (s *Store) Invalidate(ctx context.Context, repoRoot, commitHash string) error {
	key := cacheKey(repoRoot, commitHash)

	s.mem.Delete(key)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_index_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("%w: indexcache: invalidate %s: %w", model.ErrCache, key, err)
	}

	return nil
}

func compress(plain []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer := lz4.NewWriter(&buf)

	if _, err := writer.Write(plain); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(compressed))

	return io.ReadAll(reader)
}
