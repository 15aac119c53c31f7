package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/shelfkeep/internal/database"
)

var (
	ErrDisabled      = errors.New("backup not configured: S3 credentials missing")
	ErrNoPassphrase  = errors.New("backup passphrase is required")
	ErrSnapshotEmpty = errors.New("snapshot key is required")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration. Scheduled snapshots run only
// when Interval and Passphrase are both set.
type Config struct {
	S3         S3Config
	Interval   time.Duration
	Passphrase string
	Keep       int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Snapshot describes one encrypted copy of the local store.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager writes encrypted snapshots of the local store to S3-compatible
// storage and restores them.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	h      *database.Handle
	client s3Client
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, h *database.Handle, logger *slog.Logger, callback StatusCallback) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		h:        h,
		callback: callback,
		logger:   logger.With("component", "backup"),
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.enabled() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether S3 storage is configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled snapshot loop. It is a no-op when backups are
// disabled or no schedule is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil || m.cfg.Interval <= 0 || m.cfg.Passphrase == "" {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runScheduled(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduled loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) runScheduled(ctx context.Context) {
	m.mu.RLock()
	passphrase, keep := m.cfg.Passphrase, m.cfg.Keep
	m.mu.RUnlock()

	snap, err := m.Snapshot(ctx, passphrase)
	if err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
		return
	}
	m.logger.Info("scheduled snapshot uploaded", "key", snap.Key, "size", snap.Size)

	if keep > 0 {
		if n, err := m.Prune(ctx, keep); err != nil {
			m.logger.Warn("prune snapshots failed", "error", err)
		} else if n > 0 {
			m.logger.Info("pruned snapshots", "deleted", n)
		}
	}
}

func (m *Manager) target() (s3Client, S3Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, S3Config{}, ErrDisabled
	}
	return m.client, m.cfg.S3, nil
}

func objectKey(prefix string, at time.Time) string {
	name := fmt.Sprintf("shelfkeep-%s.db.enc", at.UTC().Format("2006-01-02T150405.000Z"))
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Snapshot copies the live database with VACUUM INTO, encrypts the copy
// and uploads it.
func (m *Manager) Snapshot(ctx context.Context, passphrase string) (*Snapshot, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	client, cfg, err := m.target()
	if err != nil {
		return nil, err
	}
	db, err := m.h.DB()
	if err != nil {
		return nil, err
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})
	snap, err := m.snapshot(ctx, db, client, cfg, passphrase)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}
	at := snap.CreatedAt
	m.setStatus(Status{State: StateIdle, LastBackup: &at})
	return snap, nil
}

func (m *Manager) snapshot(ctx context.Context, db *sql.DB, client s3Client, cfg S3Config, passphrase string) (*Snapshot, error) {
	tmpDir, err := os.MkdirTemp("", "shelfkeep-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	copyPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	key := objectKey(cfg.Prefix, now)
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}
	return &Snapshot{Key: key, Size: int64(len(sealed)), CreatedAt: now}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	client, cfg, err := m.target()
	if err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(cfg.Bucket)}
	if cfg.Prefix != "" {
		input.Prefix = aws.String(strings.TrimSuffix(cfg.Prefix, "/") + "/")
	}

	var snaps []Snapshot
	for {
		out, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			snaps = append(snaps, Snapshot{
				Key:       key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	// Keys embed the UTC timestamp, so they sort chronologically.
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key > snaps[j].Key })
	return snaps, nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	client, cfg, err := m.target()
	if err != nil {
		return 0, err
	}
	snaps, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}

	deleted := 0
	for i := keep; i < len(snaps); i++ {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(snaps[i].Key),
		}); err != nil {
			m.logger.Warn("delete snapshot failed", "key", snaps[i].Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Restore downloads and decrypts the snapshot at key, verifies it with
// PRAGMA integrity_check and writes it to dst. dst must not be the path of
// an open database.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dst string) error {
	if key == "" {
		return ErrSnapshotEmpty
	}
	if passphrase == "" {
		return ErrNoPassphrase
	}
	client, cfg, err := m.target()
	if err != nil {
		return err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	sealed, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("snapshot restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
