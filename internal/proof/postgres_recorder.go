package proof

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder durably records proof bundles, satisfying
// collab.ProofRecorder. This is an optional adapter — the core's default
// recorder is the in-memory ring buffer in Recorder.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder opens a connection pool and verifies reachability,
// mirroring store.NewPostgresStore's setup.
func NewPostgresRecorder(ctx context.Context, connString string) (*PostgresRecorder, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresRecorder{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRecorder) Close() {
	r.pool.Close()
}

// RecordReflexProof inserts a proof bundle keyed by runID. The table is
// expected to already exist (schema management lives outside the core).
func (r *PostgresRecorder) RecordReflexProof(ctx context.Context, runID string, bundle interface{}) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reflex_proof_bundles (run_id, bundle_hash, payload, recorded_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id) DO UPDATE SET
			bundle_hash = EXCLUDED.bundle_hash,
			payload = EXCLUDED.payload,
			recorded_at = NOW()
	`, runID, bundleHashOf(bundle), payload)
	return err
}

func bundleHashOf(bundle interface{}) string {
	if b, ok := bundle.(Bundle); ok {
		return b.BundleHash
	}
	return ""
}
