// Package cache is the content-addressed store for completed analysis
// results. One JSON file per key, plus a metadata file holding the
// instruction-template hash: when the template changes, every cached
// judgment was produced under different instructions and the whole
// namespace is invalidated at once.
//
// Cache failures are never fatal. Reads and writes that go wrong are logged
// and degrade the system to "always compute".
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/domain"
)

const metadataFile = "metadata.json"

// KeyParams are the inputs that deterministically identify one analysis.
type KeyParams struct {
	Prompts         []string `json:"prompts"`
	Provider        string   `json:"provider"`
	Date            string   `json:"date"`
	RulesHash       string   `json:"rules_hash"`
	TemplateVersion string   `json:"template_version"`
}

// Key hashes the parameters into a stable cache key. Prompt order is
// preserved: the same prompts in a different order are a different analysis.
func Key(params KeyParams) string {
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type entry struct {
	Result    *domain.AnalysisResult `json:"result"`
	CreatedAt time.Time              `json:"created_at"`
	TTL       time.Duration          `json:"ttl"`
}

type metadata struct {
	TemplateVersion string `json:"template_version"`
}

// Cache is the on-disk store. Safe for overlapping process invocations:
// writes go to a temp file first and are renamed into place, so a reader
// sees either the old entry or the new one, never a mix.
type Cache struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
}

func New(dir string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{dir: dir, ttl: ttl, logger: logger}
}

// EnsureTemplate compares the stored instruction-template version with the
// current one and purges every entry on mismatch. Called once per run
// before any Get.
func (c *Cache) EnsureTemplate(templateVersion string) {
	path := filepath.Join(c.dir, metadataFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var meta metadata
		if json.Unmarshal(data, &meta) == nil && meta.TemplateVersion == templateVersion {
			return
		}
		c.logger.Info("instruction template changed, invalidating cache")
		c.purge()
	} else if !os.IsNotExist(err) {
		c.logger.Warn("read cache metadata", zap.Error(err))
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("create cache dir", zap.Error(err))
		return
	}
	c.writeFile(path, metadata{TemplateVersion: templateVersion})
}

// Get returns the cached result for key, or nil on any miss: absent entry,
// expired TTL, or an unreadable file.
func (c *Cache) Get(key string) *domain.AnalysisResult {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("read cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("decode cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}

	if e.TTL > 0 && time.Since(e.CreatedAt) > e.TTL {
		_ = os.Remove(c.entryPath(key))
		return nil
	}

	return e.Result
}

// Set stores a completed result under key. Failures are logged, not
// returned: a cache that cannot be written must not fail the analysis.
func (c *Cache) Set(key string, result *domain.AnalysisResult) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("create cache dir", zap.Error(err))
		return
	}
	c.writeFile(c.entryPath(key), entry{
		Result:    result,
		CreatedAt: time.Now(),
		TTL:       c.ttl,
	})
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// writeFile writes v atomically: marshal, write to a unique temp file in
// the same directory, then rename over the target.
func (c *Cache) writeFile(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("encode cache file", zap.String("path", path), zap.Error(err))
		return
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Warn("write cache file", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		c.logger.Warn("rename cache file", zap.String("path", path), zap.Error(err))
		_ = os.Remove(tmp)
	}
}

// purge removes all entry files, leaving the directory itself in place.
func (c *Cache) purge() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("list cache dir", zap.Error(err))
		return
	}
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, ".json") || name == metadataFile {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			c.logger.Warn("remove cache entry", zap.String("name", name), zap.Error(err))
		}
	}
}
