package badger

import (
	"fmt"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/janelia-flyem/libdvid-go/storage"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type BadgerSuite struct {
	db *BadgerDB
}

var _ = Suite(&BadgerSuite{})

func (s *BadgerSuite) SetUpTest(c *C) {
	db, err := Open(Config{InMemory: true})
	c.Assert(err, IsNil)
	s.db = db
}

func (s *BadgerSuite) TearDownTest(c *C) {
	c.Assert(s.db.Close(), IsNil)
}

func tkey(i int) storage.TKey {
	return storage.NewTKey(storage.TKeyKeyValue, []byte(fmt.Sprintf("key%03d", i)))
}

func (s *BadgerSuite) TestGetPutDelete(c *C) {
	ctx := storage.NewDataContext("kv", 1)

	value, err := s.db.Get(ctx, tkey(1))
	c.Assert(err, IsNil)
	c.Assert(value, IsNil)
	found, err := s.db.Exists(ctx, tkey(1))
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	c.Assert(s.db.Put(ctx, tkey(1), []byte("one")), IsNil)
	value, err = s.db.Get(ctx, tkey(1))
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "one")
	found, err = s.db.Exists(ctx, tkey(1))
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)

	// another instance doesn't see the key
	value, err = s.db.Get(storage.NewDataContext("kv", 2), tkey(1))
	c.Assert(err, IsNil)
	c.Assert(value, IsNil)

	c.Assert(s.db.Delete(ctx, tkey(1)), IsNil)
	value, err = s.db.Get(ctx, tkey(1))
	c.Assert(err, IsNil)
	c.Assert(value, IsNil)

	_, err = s.db.Get(nil, tkey(1))
	c.Assert(err, NotNil)
}

func (s *BadgerSuite) TestRanges(c *C) {
	ctx := storage.NewDataContext("kv", 7)
	other := storage.NewDataContext("kv", 8)

	var kvs []storage.TKeyValue
	for i := 0; i < 20; i++ {
		kvs = append(kvs, storage.TKeyValue{K: tkey(i), V: []byte(fmt.Sprintf("value%d", i))})
	}
	c.Assert(s.db.PutRange(ctx, kvs), IsNil)
	c.Assert(s.db.Put(other, tkey(5), []byte("other")), IsNil)

	keys, err := s.db.KeysInRange(ctx, tkey(3), tkey(6))
	c.Assert(err, IsNil)
	c.Assert(keys, HasLen, 4)
	c.Assert(string(keys[0]), Equals, string(tkey(3)))
	c.Assert(string(keys[3]), Equals, string(tkey(6)))

	values, err := s.db.GetRange(ctx, tkey(15), nil)
	c.Assert(err, IsNil)
	c.Assert(values, HasLen, 5)
	c.Assert(string(values[0].V), Equals, "value15")
	c.Assert(string(values[4].V), Equals, "value19")

	keys, err = s.db.KeysInRange(ctx, nil, nil)
	c.Assert(err, IsNil)
	c.Assert(keys, HasLen, 20)

	c.Assert(s.db.DeleteAll(ctx), IsNil)
	keys, err = s.db.KeysInRange(ctx, nil, nil)
	c.Assert(err, IsNil)
	c.Assert(keys, HasLen, 0)

	value, err := s.db.Get(other, tkey(5))
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "other")
}

func (s *BadgerSuite) TestMetadataContext(c *C) {
	meta := storage.NewMetadataContext()
	c.Assert(s.db.Put(meta, storage.TKey("repo:abc"), []byte("{}")), IsNil)
	c.Assert(s.db.Put(storage.NewDataContext("kv", 1), tkey(0), []byte("data")), IsNil)

	values, err := s.db.GetRange(meta, storage.TKey("repo:"), nil)
	c.Assert(err, IsNil)
	c.Assert(values, HasLen, 1)
	c.Assert(string(values[0].K), Equals, "repo:abc")
	c.Assert(s.db.Engine().Name, Equals, "badger")
}

func (s *BadgerSuite) TestPersistence(c *C) {
	dir := c.MkDir()
	db, err := Open(Config{Path: dir})
	c.Assert(err, IsNil)
	ctx := storage.NewDataContext("kv", 1)
	c.Assert(db.Put(ctx, tkey(9), []byte("persisted")), IsNil)
	c.Assert(db.Close(), IsNil)
	c.Assert(db.Close(), IsNil)

	_, err = db.Get(ctx, tkey(9))
	c.Assert(err, NotNil)

	db, err = Open(Config{Path: dir})
	c.Assert(err, IsNil)
	defer db.Close()
	value, err := db.Get(ctx, tkey(9))
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "persisted")

	_, err = Open(Config{})
	c.Assert(err, NotNil)
}
