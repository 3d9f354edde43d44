// Package seedstore persists local authoritative seed records to SQLite
// so they survive a restart. spec.md's core leaves preload persistence
// external to the resolver ("no persistence format is mandated by this
// spec"); this package is that external collaborator, grounded in the
// corpus's own sqlite+golang-migrate pattern (internal/database).
//
// The in-memory repository (internal/resolvers.InMemory) remains the
// API the resolver uses at request time; Store only mirrors Save calls
// to disk so the process can repopulate InMemory on the next startup.
package seedstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/jroosing/hydradns/internal/dns"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SeedRecord is the persisted shape of one resource record: the wire
// TYPE/CLASS/TTL plus the already-marshaled RDATA bytes, so restoring a
// record never depends on re-deriving its type-specific fields.
type SeedRecord struct {
	Name  string
	Type  dns.RecordType
	Class dns.RecordClass
	TTL   uint32
	RData []byte
}

// ToRecord decodes the stored RDATA back into a concrete dns.Record,
// using the same per-type parsers the wire codec uses.
func (s SeedRecord) ToRecord() (dns.Record, error) {
	off := 0
	msg := s.RData
	var rec dns.Record
	var err error
	switch s.Type {
	case dns.TypeA, dns.TypeAAAA:
		rec, err = dns.ParseIPRData(msg, &off, len(msg))
	case dns.TypeCNAME, dns.TypeNS, dns.TypePTR:
		rec, err = dns.ParseNameRData(msg, &off, 0, len(msg), s.Type)
	case dns.TypeMX:
		rec, err = dns.ParseMXRData(msg, &off, 0, len(msg))
	case dns.TypeTXT:
		rec, err = dns.ParseTXTRData(msg, &off, len(msg))
	default:
		rec, err = dns.ParseOpaqueRData(msg, &off, len(msg), s.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("seedstore: decode %s record for %q: %w", typeName(s.Type), s.Name, err)
	}
	rec.SetHeader(dns.RRHeader{Name: s.Name, Class: s.Class, TTL: s.TTL})
	return rec, nil
}

func typeName(t dns.RecordType) string {
	return fmt.Sprintf("TYPE%d", t)
}

// FromRecord captures a dns.Record as a SeedRecord ready for Save.
func FromRecord(rec dns.Record) (SeedRecord, error) {
	rdata, err := rec.MarshalRData()
	if err != nil {
		return SeedRecord{}, err
	}
	h := rec.Header()
	return SeedRecord{
		Name:  dns.NormalizeName(h.Name),
		Type:  rec.Type(),
		Class: h.Class,
		TTL:   h.TTL,
		RData: rdata,
	}, nil
}

// Store wraps a SQLite database holding persisted seed records.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open opens or creates the SQLite database at path, applying embedded
// migrations. A blank path is rejected by the caller; Store has no
// no-op mode of its own.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("seedstore: open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seedstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("up: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Records returns every persisted seed record.
func (s *Store) Records(ctx context.Context) ([]SeedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT name, type, class, ttl, rdata FROM seed_records`)
	if err != nil {
		return nil, fmt.Errorf("seedstore: query records: %w", err)
	}
	defer rows.Close()

	var out []SeedRecord
	for rows.Next() {
		var rec SeedRecord
		var typ, class uint16
		if err := rows.Scan(&rec.Name, &typ, &class, &rec.TTL, &rec.RData); err != nil {
			return nil, fmt.Errorf("seedstore: scan record: %w", err)
		}
		rec.Type = dns.RecordType(typ)
		rec.Class = dns.RecordClass(class)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seedstore: iterate records: %w", err)
	}
	return out, nil
}

// Save upserts one seed record, keyed by (name, type, class, rdata).
func (s *Store) Save(ctx context.Context, rec SeedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO seed_records (name, type, class, ttl, rdata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, type, class, rdata) DO UPDATE SET
			ttl = excluded.ttl,
			updated_at = excluded.updated_at
	`, rec.Name, uint16(rec.Type), uint16(rec.Class), rec.TTL, rec.RData, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("seedstore: save record %q: %w", rec.Name, err)
	}
	return nil
}
