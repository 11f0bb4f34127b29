// Package artifacts publishes built index artifacts to an S3-compatible
// bucket and fetches them back onto a searcher's disk.
//
// A publish uploads every artifact file and then a manifest listing their
// sizes and SHA-256 digests. A fetch reads the manifest first, so a searcher
// never installs a half-published set.
package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/fsutil"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/tracing"
)

// ManifestName is the object written last by Publish.
const ManifestName = "manifest.json"

// ErrNotFound is returned by a Bucket for a missing object.
var ErrNotFound = errors.New("object not found")

// Bucket is the object store surface the publisher needs.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// File is one artifact: its object name and its local path.
type File struct {
	Name string
	Path string
}

// Files lists the four artifacts named by cfg.
func Files(cfg config.ArtifactsConfig) []File {
	return []File{
		{Name: path.Base(cfg.IndexFile), Path: cfg.IndexPath()},
		{Name: path.Base(cfg.VocabFile), Path: cfg.VocabPath()},
		{Name: path.Base(cfg.TrieFile), Path: cfg.TriePath()},
		{Name: path.Base(cfg.RowsFile), Path: cfg.RowsPath()},
	}
}

// Manifest describes one published artifact set.
type Manifest struct {
	PublishedAt time.Time       `json:"published_at"`
	Files       []ManifestEntry `json:"files"`
}

type ManifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Publisher moves artifacts between local disk and a Bucket.
type Publisher struct {
	bucket  Bucket
	prefix  string
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher returns a Publisher storing objects under prefix. m may be nil.
func NewPublisher(b Bucket, prefix string, m *metrics.Metrics) *Publisher {
	return &Publisher{
		bucket: b,
		prefix: prefix,
		retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Retryable:    func(err error) bool { return !errors.Is(err, ErrNotFound) },
		},
		metrics: m,
		logger:  slog.Default().With("component", "artifacts"),
		now:     time.Now,
	}
}

func (p *Publisher) key(name string) string {
	return path.Join(p.prefix, name)
}

// Publish uploads files and then the manifest describing them.
func (p *Publisher) Publish(ctx context.Context, files []File) (*Manifest, error) {
	ctx, span := tracing.Start(ctx, "artifacts.publish")
	defer span.End()
	m := &Manifest{PublishedAt: p.now().UTC()}
	for _, f := range files {
		entry, err := p.upload(ctx, f)
		p.record("upload", err)
		if err != nil {
			return nil, fmt.Errorf("publishing %s: %w", f.Name, err)
		}
		m.Files = append(m.Files, entry)
		p.logger.Info("artifact uploaded", "name", f.Name, "size", entry.Size)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	err = resilience.Retry(ctx, "artifact-upload", p.retry, func(ctx context.Context) error {
		return p.bucket.Put(ctx, p.key(ManifestName), bytes.NewReader(data), int64(len(data)))
	})
	p.record("upload", err)
	if err != nil {
		return nil, fmt.Errorf("publishing manifest: %w", err)
	}
	p.logger.Info("artifact set published", "files", len(m.Files), "prefix", p.prefix)
	return m, nil
}

func (p *Publisher) upload(ctx context.Context, f File) (ManifestEntry, error) {
	sum, size, err := digestFile(f.Path)
	if err != nil {
		return ManifestEntry{}, err
	}
	err = resilience.Retry(ctx, "artifact-upload", p.retry, func(ctx context.Context) error {
		fh, err := os.Open(f.Path)
		if err != nil {
			return apperrors.IO("open", f.Path, err)
		}
		defer fh.Close()
		return p.bucket.Put(ctx, p.key(f.Name), fh, size)
	})
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{Name: f.Name, Size: size, SHA256: sum}, nil
}

// Fetch downloads the published set into the local paths of files. Each
// file is verified against the manifest before it replaces the local copy.
func (p *Publisher) Fetch(ctx context.Context, files []File) (*Manifest, error) {
	ctx, span := tracing.Start(ctx, "artifacts.fetch")
	defer span.End()
	m, err := p.manifest(ctx)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]ManifestEntry, len(m.Files))
	for _, e := range m.Files {
		entries[e.Name] = e
	}
	for _, f := range files {
		entry, ok := entries[f.Name]
		if !ok {
			return nil, fmt.Errorf("manifest has no entry for %s: %w", f.Name, ErrNotFound)
		}
		err := resilience.Retry(ctx, "artifact-download", p.retry, func(ctx context.Context) error {
			return p.download(ctx, entry, f.Path)
		})
		p.record("download", err)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", f.Name, err)
		}
		p.logger.Info("artifact downloaded", "name", f.Name, "size", entry.Size, "path", f.Path)
	}
	return m, nil
}

func (p *Publisher) manifest(ctx context.Context) (*Manifest, error) {
	var data []byte
	err := resilience.Retry(ctx, "artifact-download", p.retry, func(ctx context.Context) error {
		rc, err := p.bucket.Get(ctx, p.key(ManifestName))
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	p.record("download", err)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", apperrors.ErrCorruptFormat)
	}
	return &m, nil
}

func (p *Publisher) download(ctx context.Context, entry ManifestEntry, dst string) error {
	rc, err := p.bucket.Get(ctx, p.key(entry.Name))
	if err != nil {
		return err
	}
	defer rc.Close()

	return fsutil.WriteFileAtomic(dst, func(w io.Writer) error {
		h := sha256.New()
		n, err := io.Copy(io.MultiWriter(w, h), rc)
		if err != nil {
			return fmt.Errorf("copying %s: %w", entry.Name, err)
		}
		return verify(entry, n, h)
	})
}

func verify(entry ManifestEntry, n int64, h hash.Hash) error {
	if n != entry.Size {
		return fmt.Errorf("%s: got %d bytes, manifest says %d: %w", entry.Name, n, entry.Size, apperrors.ErrCorruptFormat)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != entry.SHA256 {
		return fmt.Errorf("%s: sha256 %s, manifest says %s: %w", entry.Name, sum, entry.SHA256, apperrors.ErrCorruptFormat)
	}
	return nil
}

func (p *Publisher) record(op string, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.metrics.ArtifactTransfersTotal.WithLabelValues(op, status).Inc()
}

func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, apperrors.IO("open", path, err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, apperrors.IO("read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
