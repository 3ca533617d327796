package store

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease takes or renews the named lease for holder until now+ttl.
// It fails with ErrLeaseHeld while a different holder's lease is unexpired.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_lease (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE
		SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE maintenance_lease.expires_at <= ? OR maintenance_lease.holder = excluded.holder`,
		name, holder, toUnixNano(now.Add(ttl)), toUnixNano(now))
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("acquire lease %s: %w", name, ErrLeaseHeld)
	}
	return nil
}

// ReleaseLease drops the lease if holder owns it.
func (s *Store) ReleaseLease(ctx context.Context, name, holder string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM maintenance_lease WHERE name = ? AND holder = ?`, name, holder)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
