// Package filestore implements spec.md §4.4a's hierarchical file backend:
// one bbolt file per contract, with the variable name and each subkey
// forming a chain of nested bbolt buckets (an idiomatic replacement for the
// distilled source's HDF5 group path — bbolt buckets are natively
// hierarchical, so no string rewrite of the ':' subkey separator is
// needed). Grounded on node/store/db.go (bolt.Open with a
// configurable Options.Timeout) and node/store/manifest.go's
// fmt.Errorf("...: %w", ...) error-wrapping idiom.
package filestore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"

	"lamden.dev/statecore/backend"
	"lamden.dev/statecore/keycodec"
)

const (
	metaBucket = "__meta__"
	metaNameAttr = "name"

	// DefaultLockTimeout matches spec.md §6's lock_timeout_seconds default.
	DefaultLockTimeout = 20 * time.Second
	// DefaultOpenFileBudget bounds how many per-contract bbolt handles stay
	// open at once before the LRU evicts (and closes) the coldest one.
	DefaultOpenFileBudget = 256
	// DefaultCompressThreshold is the encoded-value size above which values
	// are zstd-compressed before being written to the value attribute.
	DefaultCompressThreshold = 4096

	maxFilenameBytes = 255
)

var (
	valueAttrKey = []byte("value")
	blockAttrKey = []byte("block")
)

const defaultBlock int64 = -1

// Config configures a Store.
type Config struct {
	Root              string
	LockTimeout       time.Duration
	OpenFileBudget    int
	CompressThreshold int
	Codec             keycodec.Codec
}

// Store is the hierarchical, single-writer-per-file backend.
type Store struct {
	root              string
	lockTimeout       time.Duration
	compressThreshold int
	codec             keycodec.Codec

	mu      sync.Mutex // guards the open/create path for handles
	handles *lru.Cache[string, *contractHandle]
}

type contractHandle struct {
	db  *bolt.DB
	sem chan struct{} // 1-token semaphore: acts as a timeout-capable write mutex
}

func newContractHandle(db *bolt.DB) *contractHandle {
	h := &contractHandle{db: db, sem: make(chan struct{}, 1)}
	h.sem <- struct{}{}
	return h
}

func (h *contractHandle) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case <-h.sem:
		return nil
	case <-time.After(timeout):
		return backend.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *contractHandle) release() {
	h.sem <- struct{}{}
}

// New opens (creating if necessary) a filestore rooted at cfg.Root.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("filestore: root path required")
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.OpenFileBudget <= 0 {
		cfg.OpenFileBudget = DefaultOpenFileBudget
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	if cfg.Codec == (keycodec.Codec{}) {
		cfg.Codec = keycodec.Default()
	}
	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: mkdir root: %w", err)
	}

	s := &Store{
		root:              cfg.Root,
		lockTimeout:       cfg.LockTimeout,
		compressThreshold: cfg.CompressThreshold,
		codec:             cfg.Codec,
	}
	handles, err := lru.NewWithEvict[string, *contractHandle](cfg.OpenFileBudget, func(_ string, h *contractHandle) {
		_ = h.db.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: lru init: %w", err)
	}
	s.handles = handles
	return s, nil
}

// Close closes every open per-contract handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.handles.Keys() {
		if h, ok := s.handles.Peek(key); ok {
			_ = h.db.Close()
		}
	}
	s.handles.Purge()
	return nil
}

func (s *Store) path(contract string) string {
	return filepath.Join(s.root, safeFilename(contract))
}

// getOrOpenHandle returns the (cached or freshly opened) handle for
// contract. When create is false and no file exists yet, it returns
// (nil, false, nil) rather than creating one — used by readers so that a
// Get against an unknown contract never creates a file.
func (s *Store) getOrOpenHandle(contract string, create bool) (*contractHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles.Get(contract); ok {
		return h, true, nil
	}

	path := s.path(contract)
	_, statErr := os.Stat(path)
	existed := statErr == nil
	if !existed && !create {
		return nil, false, nil
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: s.lockTimeout})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, false, backend.ErrTimeout
		}
		return nil, false, fmt.Errorf("%w: open %s: %v", backend.ErrIO, path, err)
	}
	h := newContractHandle(db)

	if !existed {
		if err := db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
			if err != nil {
				return err
			}
			return b.Put([]byte(metaNameAttr), []byte(contract))
		}); err != nil {
			_ = db.Close()
			return nil, false, fmt.Errorf("%w: init %s: %v", backend.ErrIO, path, err)
		}
	}

	s.handles.Add(contract, h)
	return h, true, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	contract, variable, subkeys, err := s.codec.ParseKey(key)
	if err != nil {
		return "", false, err
	}
	h, existed, err := s.getOrOpenHandle(contract, false)
	if err != nil {
		return "", false, err
	}
	if !existed {
		return "", false, nil
	}

	var raw []byte
	err = h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(variable))
		for _, sk := range subkeys {
			if b == nil {
				return nil
			}
			b = b.Bucket([]byte(sk))
		}
		if b == nil {
			return nil
		}
		if v := b.Get(valueAttrKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", backend.ErrIO, key, err)
	}
	if raw == nil {
		return "", false, nil
	}
	val, err := decompress(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: decompress %s: %v", backend.ErrIO, key, err)
	}
	return string(val), true, nil
}

func (s *Store) Set(ctx context.Context, key string, val string) error {
	contract, variable, subkeys, err := s.codec.ParseKey(key)
	if err != nil {
		return err
	}
	h, _, err := s.getOrOpenHandle(contract, true)
	if err != nil {
		return err
	}
	if err := h.acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer h.release()

	stored := compress(val, s.compressThreshold)
	err = h.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(variable))
		if err != nil {
			return err
		}
		for _, sk := range subkeys {
			b, err = b.CreateBucketIfNotExists([]byte(sk))
			if err != nil {
				return err
			}
		}
		if err := b.Put(valueAttrKey, stored); err != nil {
			return err
		}
		if b.Get(blockAttrKey) == nil {
			return b.Put(blockAttrKey, encodeBlock(defaultBlock))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", backend.ErrIO, key, err)
	}
	return nil
}

// SetBlock stores val under key along with an explicit block tag, for
// collaborators outside this core that need the opaque per-entry "block"
// attribute from spec.md §6.
func (s *Store) SetBlock(ctx context.Context, key string, val string, block int64) error {
	contract, variable, subkeys, err := s.codec.ParseKey(key)
	if err != nil {
		return err
	}
	h, _, err := s.getOrOpenHandle(contract, true)
	if err != nil {
		return err
	}
	if err := h.acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer h.release()

	stored := compress(val, s.compressThreshold)
	err = h.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(variable))
		if err != nil {
			return err
		}
		for _, sk := range subkeys {
			b, err = b.CreateBucketIfNotExists([]byte(sk))
			if err != nil {
				return err
			}
		}
		if err := b.Put(valueAttrKey, stored); err != nil {
			return err
		}
		return b.Put(blockAttrKey, encodeBlock(block))
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", backend.ErrIO, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	contract, variable, subkeys, err := s.codec.ParseKey(key)
	if err != nil {
		return err
	}
	h, existed, err := s.getOrOpenHandle(contract, false)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := h.acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer h.release()

	err = h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(variable))
		for _, sk := range subkeys {
			if b == nil {
				return nil
			}
			b = b.Bucket([]byte(sk))
		}
		if b == nil {
			return nil
		}
		return b.Delete(valueAttrKey)
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", backend.ErrIO, key, err)
	}
	return nil
}

func (s *Store) Iter(ctx context.Context, prefix string, limit int) ([]string, error) {
	contractPrefix := prefix
	if i := strings.IndexByte(prefix, '.'); i >= 0 {
		contractPrefix = prefix[:i]
	}

	contracts, err := s.listContracts()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range contracts {
		if !strings.HasPrefix(name, contractPrefix) {
			continue
		}
		keys, err := s.keysForContract(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) {
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.Iter(ctx, "", 0)
}

func (s *Store) Flush(_ context.Context) error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("%w: flush: %v", backend.ErrIO, err)
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("%w: flush mkdir: %v", backend.ErrIO, err)
	}
	return nil
}

func (s *Store) listContracts() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: readdir %s: %v", backend.ErrIO, s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	// Resolve sanitized filenames back to contract names via the file's
	// meta bucket, so iter/keys operate on logical contract names even
	// when the on-disk filename had to be hashed.
	resolved := make([]string, 0, len(names))
	for _, filename := range names {
		name, err := s.contractNameForFile(filename)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}

func (s *Store) contractNameForFile(filename string) (string, error) {
	// A file whose handle is already open is resolved from the handle pool:
	// a second bolt.Open of the same file would wait on the open handle's
	// file lock until the timeout.
	s.mu.Lock()
	for _, name := range s.handles.Keys() {
		if safeFilename(name) == filename {
			s.mu.Unlock()
			return name, nil
		}
	}
	s.mu.Unlock()

	path := filepath.Join(s.root, filename)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: s.lockTimeout, ReadOnly: true})
	if err != nil {
		return filename, nil //nolint:nilerr // tolerate unreadable stray files rather than failing the whole scan
	}
	defer db.Close()

	var name string
	_ = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(metaNameAttr)); v != nil {
			name = string(v)
		}
		return nil
	})
	if name == "" {
		return filename, nil
	}
	return name, nil
}

func (s *Store) keysForContract(ctx context.Context, name string) ([]string, error) {
	h, existed, err := s.getOrOpenHandle(name, false)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, nil
	}

	var out []string
	err = h.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(bucketName []byte, b *bolt.Bucket) error {
			if string(bucketName) == metaBucket {
				return nil
			}
			return walkBucket(b, []string{string(bucketName)}, func(path []string) error {
				flat, mkErr := s.codec.MakeKey(name, path[0], path[1:])
				if mkErr != nil {
					return nil // path too deep/long to be a legal key; skip rather than fail the whole scan
				}
				out = append(out, flat)
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", backend.ErrIO, name, err)
	}
	_ = ctx
	return out, nil
}

func walkBucket(b *bolt.Bucket, path []string, emit func([]string) error) error {
	if b.Get(valueAttrKey) != nil {
		if err := emit(path); err != nil {
			return err
		}
	}
	return b.ForEach(func(k, v []byte) error {
		if v != nil {
			return nil // plain attribute (value/block), not a nested bucket
		}
		nested := b.Bucket(k)
		if nested == nil {
			return nil
		}
		nextPath := make([]string, len(path)+1)
		copy(nextPath, path)
		nextPath[len(path)] = string(k)
		return walkBucket(nested, nextPath, emit)
	})
}

func encodeBlock(block int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(block))
	return buf
}

func isSafeFilename(s string) bool {
	if s == "" || len(s) > maxFilenameBytes || s == "." || s == ".." {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' || c == '\\' || c == 0 || c < 0x20 {
			return false
		}
	}
	return true
}

// safeFilename returns a filesystem-safe name for contract: the contract
// name itself when it already is one, else a bounded sha3-256 digest
// prefix (both under the 255-byte filename ceiling from spec.md §6).
func safeFilename(contract string) string {
	if isSafeFilename(contract) {
		return contract
	}
	sum := sha3.Sum256([]byte(contract))
	return "x-" + hex.EncodeToString(sum[:])[:48]
}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			panic(fmt.Sprintf("filestore: zstd encoder init: %v", err))
		}
		zstdEnc = enc
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("filestore: zstd decoder init: %v", err))
		}
		zstdDec = dec
	})
	return zstdDec
}

// compress prefixes val with a one-byte flag (0x00 raw, 0x01 zstd) so
// decompress can tell them apart; only values over threshold bytes pay the
// compression cost, since most contract values (balances, small strings)
// would not shrink enough to be worth it.
func compress(val string, threshold int) []byte {
	if len(val) <= threshold {
		out := make([]byte, 1+len(val))
		out[0] = 0x00
		copy(out[1:], val)
		return out
	}
	compressed := encoder().EncodeAll([]byte(val), nil)
	out := make([]byte, 1+len(compressed))
	out[0] = 0x01
	copy(out[1:], compressed)
	return out
}

func decompress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("filestore: empty stored value")
	}
	flag, body := raw[0], raw[1:]
	switch flag {
	case 0x00:
		return body, nil
	case 0x01:
		return decoder().DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("filestore: unknown value flag %x", flag)
	}
}
