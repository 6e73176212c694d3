// Package archive persists transcriptions as named, checksummed records in a
// bbolt database.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/scribe/transcription"
)

const (
	dataBucket = "archives"
	infoBucket = "archive_info"
)

type Options struct {
	Logger *slog.Logger

	// Format used by Put. Records in other formats can still be read.
	Format Format

	// IsTesting trades durability for speed.
	IsTesting bool

	// Now is used to stamp saved archives; defaults to time.Now.
	Now func() time.Time
}

// Info describes a stored archive.
type Info struct {
	Name     string    `msgpack:"name" json:"name"`
	ID       uuid.UUID `msgpack:"id" json:"id"`
	Format   Format    `msgpack:"fmt" json:"format"`
	Size     int       `msgpack:"size" json:"size"`
	Checksum uint64    `msgpack:"sum" json:"checksum"`
	Objects  int       `msgpack:"objs" json:"objects"`
	Keys     int       `msgpack:"keys" json:"keys"`
	SavedAt  time.Time `msgpack:"at" json:"saved_at"`
}

// Store is a collection of named transcriptions. It is safe for concurrent
// use.
type Store struct {
	st     storage
	logger *slog.Logger
	format Format
	now    func() time.Time
}

// Open opens or creates a bbolt-backed store at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	s, err := newStore(newBoltStorage(bdb), opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory returns a store that lives in memory until closed.
func OpenMemory(opt Options) *Store {
	s, err := newStore(newMemStorage(), opt)
	if err != nil {
		panic(err)
	}
	return s
}

func newStore(st storage, opt Options) (*Store, error) {
	if !opt.Format.isValid() {
		return nil, fmt.Errorf("archive: unsupported format %v", opt.Format)
	}
	s := &Store{
		st:     st,
		logger: opt.Logger,
		format: opt.Format,
		now:    opt.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	err := s.update(func(tx storageTx) error {
		for _, name := range []string{dataBucket, infoBucket} {
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) view(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (s *Store) update(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Put stores tr under name, replacing any previous archive with that name.
// Incomplete transcriptions are refused with ErrIncomplete.
func (s *Store) Put(name string, tr *transcription.Transcription) (*Info, error) {
	if name == "" {
		panic("archive: empty name")
	}
	if err := tr.CheckComplete(); err != nil {
		return nil, fmt.Errorf("archive: %s: %w: %w", name, ErrIncomplete, err)
	}
	data, err := Encode(tr, s.format)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Name:     name,
		ID:       uuid.New(),
		Format:   s.format,
		Size:     len(data),
		Checksum: Checksum(data),
		Objects:  tr.Len(),
		Keys:     tr.ObjectKeyCount(),
		SavedAt:  s.now().UTC(),
	}
	rawInfo, err := MsgPack.encode(nil, info)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	key := unsafeBytesFromString(name)
	err = s.update(func(tx storageTx) error {
		if err := tx.Bucket(dataBucket).Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(infoBucket).Put(key, rawInfo)
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", name, err)
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "archive: saved",
		slog.String("name", name),
		slog.String("id", info.ID.String()),
		slog.String("format", info.Format.String()),
		slog.Int("size", info.Size),
		slog.Int("objects", info.Objects))
	return info, nil
}

// Get loads the archive stored under name. It returns an error wrapping
// ErrNotFound if there is none, and a *DataError if the record is corrupted.
func (s *Store) Get(name string) (*transcription.Transcription, error) {
	data, err := s.Raw(name)
	if err != nil {
		return nil, err
	}
	tr, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", name, err)
	}
	return tr, nil
}

// Raw returns the encoded record stored under name.
func (s *Store) Raw(name string) ([]byte, error) {
	var data []byte
	err := s.view(func(tx storageTx) error {
		v := tx.Bucket(dataBucket).Get(unsafeBytesFromString(name))
		if v == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) Info(name string) (*Info, error) {
	var info *Info
	err := s.view(func(tx storageTx) error {
		v := tx.Bucket(infoBucket).Get(unsafeBytesFromString(name))
		if v == nil {
			return ErrNotFound
		}
		var err error
		info, err = decodeInfo(v)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", name, err)
	}
	return info, nil
}

// List returns infos of all archives, ordered by name.
func (s *Store) List() ([]*Info, error) {
	var result []*Info
	err := s.view(func(tx storageTx) error {
		b := tx.Bucket(infoBucket)
		result = make([]*Info, 0, b.KeyCount())
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			info, err := decodeInfo(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			result = append(result, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return result, nil
}

// Delete removes the archive stored under name.
func (s *Store) Delete(name string) error {
	key := unsafeBytesFromString(name)
	err := s.update(func(tx storageTx) error {
		data := tx.Bucket(dataBucket)
		if data.Get(key) == nil {
			return ErrNotFound
		}
		if err := data.Delete(key); err != nil {
			return err
		}
		return tx.Bucket(infoBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("archive: %s: %w", name, err)
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "archive: deleted", slog.String("name", name))
	return nil
}

// Verify decodes the archive stored under name and checks that it matches its
// info and is a complete transcription.
func (s *Store) Verify(name string) error {
	info, err := s.Info(name)
	if err != nil {
		return err
	}
	data, err := s.Raw(name)
	if err != nil {
		return err
	}
	tr, format, err := Decode(data)
	if err == nil {
		err = tr.CheckComplete()
	}
	if err == nil {
		switch {
		case format != info.Format:
			err = fmt.Errorf("format %v, info says %v", format, info.Format)
		case Checksum(data) != info.Checksum:
			err = fmt.Errorf("checksum %016x, info says %016x", Checksum(data), info.Checksum)
		case tr.Len() != info.Objects:
			err = fmt.Errorf("%d objects, info says %d", tr.Len(), info.Objects)
		}
	}
	if err != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "archive: verification failed",
			slog.String("name", name),
			slog.String("err", err.Error()))
		return fmt.Errorf("archive: %s: %w", name, err)
	}
	return nil
}

func decodeInfo(raw []byte) (*Info, error) {
	info := new(Info)
	if err := MsgPack.decode(raw, info); err != nil {
		return nil, err
	}
	return info, nil
}

// IsNotFound reports whether err means a missing archive.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
