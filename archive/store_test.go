package archive

import (
	"path/filepath"
	"testing"

	"github.com/andreyvit/scribe/transcription"
)

func withStores(t *testing.T, f func(t *testing.T, s *Store)) {
	t.Run("bolt", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "test.db"), testOptions(t, MsgPack))
		ensure(err)
		defer s.Close()
		f(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		s := OpenMemory(testOptions(t, JSON))
		defer s.Close()
		f(t, s)
	})
}

func TestStorePutGet(t *testing.T) {
	withStores(t, func(t *testing.T, s *Store) {
		tr := sampleTranscription()
		info, err := s.Put("ridge", tr)
		ensure(err)
		eq(t, info.Name, "ridge")
		eq(t, info.Objects, tr.Len())
		eq(t, info.Keys, tr.ObjectKeyCount())
		eq(t, info.SavedAt, testTime)

		tr2, err := s.Get("ridge")
		ensure(err)
		eq(t, tr2.Dump(), tr.Dump())

		info2, err := s.Info("ridge")
		ensure(err)
		eq(t, info2.ID, info.ID)
		eq(t, info2.Checksum, info.Checksum)
		eq(t, info2.Format, info.Format)
		eq(t, info2.SavedAt.Equal(testTime), true)

		ensure(s.Verify("ridge"))
	})
}

func TestStoreReplace(t *testing.T) {
	withStores(t, func(t *testing.T, s *Store) {
		first, err := s.Put("ridge", sampleTranscription())
		ensure(err)

		tr := transcription.New()
		tr.AddCompositeObject(transcription.RootObjectID)
		second, err := s.Put("ridge", tr)
		ensure(err)
		if first.ID == second.ID {
			t.Errorf("** replaced archive kept id %v", first.ID)
		}

		tr2, err := s.Get("ridge")
		ensure(err)
		eq(t, tr2.Len(), 1)
	})
}

func TestStoreList(t *testing.T) {
	withStores(t, func(t *testing.T, s *Store) {
		for _, name := range []string{"c", "a", "b"} {
			_, err := s.Put(name, sampleTranscription())
			ensure(err)
		}
		ensure(s.Delete("b"))

		infos, err := s.List()
		ensure(err)
		eq(t, len(infos), 2)
		eq(t, infos[0].Name, "a")
		eq(t, infos[1].Name, "c")
	})
}

func TestStoreNotFound(t *testing.T) {
	withStores(t, func(t *testing.T, s *Store) {
		_, err := s.Get("missing")
		expectErr(t, err, ErrNotFound)
		eq(t, IsNotFound(err), true)
		_, err = s.Info("missing")
		expectErr(t, err, ErrNotFound)
		expectErr(t, s.Delete("missing"), ErrNotFound)
		expectErr(t, s.Verify("missing"), ErrNotFound)
	})
}

func TestStoreRefusesIncomplete(t *testing.T) {
	withStores(t, func(t *testing.T, s *Store) {
		tr := transcription.New()
		root := tr.AddCompositeObject(transcription.RootObjectID)
		root.SetChild(tr.GetOrCreateObjectKey("dangling", 0), 5)

		_, err := s.Put("bad", tr)
		expectErr(t, err, ErrIncomplete)
		expectErr(t, err, transcription.ErrIncomplete)

		_, err = s.Get("bad")
		expectErr(t, err, ErrNotFound)
	})
}

func TestStoreDetectsCorruption(t *testing.T) {
	s := OpenMemory(testOptions(t, MsgPack))
	defer s.Close()
	_, err := s.Put("ridge", sampleTranscription())
	ensure(err)

	data, err := s.Raw("ridge")
	ensure(err)
	data[len(data)/2] ^= 1
	ensure(s.update(func(tx storageTx) error {
		return tx.Bucket(dataBucket).Put([]byte("ridge"), data)
	}))

	_, err = s.Get("ridge")
	expectDataError(t, err)
	expectDataError(t, s.Verify("ridge"))
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testOptions(t, JSON))
	ensure(err)
	tr := sampleTranscription()
	_, err = s.Put("ridge", tr)
	ensure(err)
	ensure(s.Close())

	s, err = Open(path, testOptions(t, MsgPack))
	ensure(err)
	defer s.Close()
	tr2, err := s.Get("ridge")
	ensure(err)
	eq(t, tr2.Dump(), tr.Dump())
	info, err := s.Info("ridge")
	ensure(err)
	eq(t, info.Format, JSON)
}
