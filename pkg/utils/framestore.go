// Package utils provides the on-disk frame store and HTTP helpers shared by
// the data sources.
package utils

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	framePrefix    = "frame/"
	timestepPrefix = "steps/"
)

// FrameStore persists raw frame payloads and step lists in badger so a
// restarted viewer does not refetch them. Values are stored exactly as the
// data service sent them.
type FrameStore struct {
	db    *badger.DB
	ttl   time.Duration
	cache sync.Map
}

// OpenFrameStore opens or creates a store at path. Entries expire after ttl;
// zero keeps them forever.
func OpenFrameStore(path string, ttl time.Duration) (*FrameStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &FrameStore{db: db, ttl: ttl}, nil
}

func (s *FrameStore) Close() error {
	return s.db.Close()
}

func FrameKey(item string, step int) string {
	return fmt.Sprintf("%s%s/%010d", framePrefix, item, step)
}

// FramePrefix is the key prefix of an item's frames, or of all frames when
// item is empty.
func FramePrefix(item string) string {
	if item == "" {
		return framePrefix
	}
	return framePrefix + item + "/"
}

func TimestepsKey(item string) string {
	return timestepPrefix + item
}

// ParseFrameKey splits a key produced by FrameKey.
func ParseFrameKey(key string) (item string, step int, ok bool) {
	rest, found := strings.CutPrefix(key, framePrefix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(rest, '/')
	if i < 0 {
		return "", 0, false
	}
	step, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return "", 0, false
	}
	return rest[:i], step, true
}

// encodeFrame prefixes body with the length of its content type.
func encodeFrame(contentType string, body []byte) []byte {
	buf := make([]byte, 2+len(contentType)+len(body))
	binary.BigEndian.PutUint16(buf, uint16(len(contentType)))
	copy(buf[2:], contentType)
	copy(buf[2+len(contentType):], body)
	return buf
}

func decodeFrame(raw []byte) (string, []byte, error) {
	if len(raw) < 2 {
		return "", nil, fmt.Errorf("frame record too short: %d bytes", len(raw))
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return "", nil, fmt.Errorf("frame record truncated: content type of %d bytes in %d", n, len(raw))
	}
	return string(raw[2 : 2+n]), raw[2+n:], nil
}

func (s *FrameStore) set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *FrameStore) PutFrame(item string, step int, contentType string, body []byte) error {
	key := FrameKey(item, step)
	s.cache.Delete(key)
	return s.set(key, encodeFrame(contentType, body))
}

// GetFrame returns ErrNotFound when the frame is not stored.
func (s *FrameStore) GetFrame(item string, step int) (string, []byte, error) {
	raw, err := s.Get(FrameKey(item, step))
	if err != nil {
		return "", nil, err
	}
	return decodeFrame(raw)
}

func (s *FrameStore) PutTimesteps(item string, raw []byte) error {
	key := TimestepsKey(item)
	s.cache.Delete(key)
	return s.set(key, raw)
}

func (s *FrameStore) GetTimesteps(item string) ([]byte, error) {
	return s.Get(TimestepsKey(item))
}

// BatchPut writes raw key/value pairs in one write batch.
func (s *FrameStore) BatchPut(entries map[string][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range entries {
		s.cache.Delete(k)
		e := badger.NewEntry([]byte(k), v)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		if err := wb.SetEntry(e); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (s *FrameStore) Get(key string) ([]byte, error) {
	if v, ok := s.cache.Load(key); ok {
		return v.([]byte), nil
	}
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.ttl == 0 {
		s.cache.Store(key, val)
	}
	return val, nil
}

// Delete removes every key starting with prefix.
func (s *FrameStore) Delete(prefix string) (int, error) {
	var keys [][]byte
	err := s.ForEach(prefix, func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return 0, err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		s.cache.Delete(string(k))
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), wb.Flush()
}

// ForEach calls fn for every key starting with prefix. k and v are only valid
// during the call.
func (s *FrameStore) ForEach(prefix string, fn func(k []byte, v []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			err := item.Value(func(v []byte) error {
				return fn(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// StoredFrame describes one frame record.
type StoredFrame struct {
	Item        string
	Step        int
	ContentType string
	Size        int
}

// Frames lists stored frames, optionally restricted to one item.
func (s *FrameStore) Frames(item string) ([]StoredFrame, error) {
	var out []StoredFrame
	err := s.ForEach(FramePrefix(item), func(k, v []byte) error {
		it, step, ok := ParseFrameKey(string(k))
		if !ok {
			return nil
		}
		ct, body, err := decodeFrame(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		out = append(out, StoredFrame{Item: it, Step: step, ContentType: ct, Size: len(body)})
		return nil
	})
	return out, err
}
