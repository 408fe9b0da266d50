package client

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/dvidtest"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type ClientSuite struct {
	srv  *dvidtest.Server
	conn *Connection
	uuid dvid.UUID
	node *NodeService
}

var _ = Suite(&ClientSuite{})

func (s *ClientSuite) SetUpSuite(c *C) {
	srv, err := dvidtest.NewServer()
	c.Assert(err, IsNil)
	s.srv = srv

	s.conn, err = NewConnection(srv.Address())
	c.Assert(err, IsNil)
	s.uuid, err = NewServerService(s.conn).CreateNewRepo(context.Background(), "clienttest", "client test repo")
	c.Assert(err, IsNil)
	s.node, err = NewNodeService(s.conn, string(s.uuid))
	c.Assert(err, IsNil)
}

func (s *ClientSuite) TearDownSuite(c *C) {
	c.Assert(s.srv.Close(), IsNil)
}

func randomGray(c *C, size dvid.Point3d, seed int64) *dvid.Gray3D {
	vol, err := dvid.NewArray3D[uint8](size)
	c.Assert(err, IsNil)
	rand.New(rand.NewSource(seed)).Read(vol.Data)
	return vol
}

func (s *ClientSuite) TestServerVersion(c *C) {
	ctx := context.Background()
	server := NewServerService(s.conn)
	info, err := server.ServerInfo(ctx)
	c.Assert(err, IsNil)
	c.Assert(info["DVID Version"], Equals, dvidtest.Version)

	version, err := server.Version(ctx)
	c.Assert(err, IsNil)
	c.Assert(version.Major, Equals, uint64(1))

	repoInfo, err := s.node.RepoInfo(ctx)
	c.Assert(err, IsNil)
	c.Assert(repoInfo["Alias"], Equals, "clienttest")
}

func (s *ClientSuite) TestCreateInstances(c *C) {
	ctx := context.Background()
	created, err := s.node.CreateKeyValue(ctx, "created_kv")
	c.Assert(err, IsNil)
	c.Assert(created, Equals, true)

	created, err = s.node.CreateKeyValue(ctx, "created_kv")
	c.Assert(err, IsNil)
	c.Assert(created, Equals, false)

	_, err = s.node.CreateGrayscale8(ctx, "created_kv")
	c.Assert(err, NotNil)

	created, err = s.node.CreateGrayscale8(ctx, "created_gray")
	c.Assert(err, IsNil)
	c.Assert(created, Equals, true)
	info, err := s.node.Info(ctx, "created_gray")
	c.Assert(err, IsNil)
	c.Assert(info.Base.TypeName, Equals, Grayscale8Type)
	c.Assert(info.Base.RepoUUID, Equals, s.uuid)

	typeInfo, err := s.node.TypeInfo(ctx, "created_gray")
	c.Assert(err, IsNil)
	c.Assert(typeInfo["Extended"], NotNil)

	_, err = s.node.CreateInstance(ctx, "labelmap", "unknown_type", dvid.NewConfig())
	c.Assert(err, NotNil)
	_, err = s.node.CreateKeyValue(ctx, "")
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)

	// a UUID prefix resolves to the same node
	prefixed, err := NewNodeService(s.conn, string(s.uuid[:8]))
	c.Assert(err, IsNil)
	created, err = prefixed.CreateLabelblk(ctx, "created_gray")
	c.Assert(err, NotNil)
	c.Assert(created, Equals, false)
}

func (s *ClientSuite) TestKeyValue(c *C) {
	ctx := context.Background()
	_, err := s.node.CreateKeyValue(ctx, "keyvalue_test")
	c.Assert(err, IsNil)

	c.Assert(s.node.Put(ctx, "keyvalue_test", "kkkk", []byte("vvvv")), IsNil)
	value, err := s.node.Get(ctx, "keyvalue_test", "kkkk")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "vvvv")

	// non-byte values are rejected before any request
	err = s.node.PutValue(ctx, "keyvalue_test", "kkkk", 123)
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
	value, err = s.node.Get(ctx, "keyvalue_test", "kkkk")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "vvvv")

	c.Assert(s.node.PutValue(ctx, "keyvalue_test", "str", "a string"), IsNil)
	value, err = s.node.Get(ctx, "keyvalue_test", "str")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "a string")

	found, err := s.node.Exists(ctx, "keyvalue_test", "kkkk")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	found, err = s.node.Exists(ctx, "keyvalue_test", "nope")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)

	_, err = s.node.Get(ctx, "keyvalue_test", "nope")
	c.Assert(errors.Is(err, ErrNotFound), Equals, true)

	c.Assert(s.node.Delete(ctx, "keyvalue_test", "kkkk"), IsNil)
	_, err = s.node.Get(ctx, "keyvalue_test", "kkkk")
	c.Assert(errors.Is(err, ErrNotFound), Equals, true)

	// keys may hold characters that need escaping
	c.Assert(s.node.Put(ctx, "keyvalue_test", "dir/file name?.json", []byte("{}")), IsNil)
	value, err = s.node.Get(ctx, "keyvalue_test", "dir/file name?.json")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "{}")

	err = s.node.Put(ctx, "keyvalue_test", "", []byte("x"))
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
	_, err = s.node.Get(ctx, "missing_instance", "kkkk")
	c.Assert(err, NotNil)
}

func (s *ClientSuite) TestKeysAndBatches(c *C) {
	ctx := context.Background()
	_, err := s.node.CreateKeyValue(ctx, "batch_test")
	c.Assert(err, IsNil)

	keys, err := s.node.Keys(ctx, "batch_test")
	c.Assert(err, IsNil)
	c.Assert(keys, HasLen, 0)

	kvmap := map[string][]byte{
		"a1": []byte("one"),
		"a2": []byte("two"),
		"b1": {0, 0, 1},
		"c1": {},
	}
	c.Assert(s.node.PutKeyValues(ctx, "batch_test", kvmap), IsNil)

	keys, err = s.node.Keys(ctx, "batch_test")
	c.Assert(err, IsNil)
	c.Assert(keys, DeepEquals, []string{"a1", "a2", "b1", "c1"})

	keys, err = s.node.KeyRange(ctx, "batch_test", "a2", "b1")
	c.Assert(err, IsNil)
	c.Assert(keys, DeepEquals, []string{"a2", "b1"})
	_, err = s.node.KeyRange(ctx, "batch_test", "a2", "")
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)

	values, err := s.node.GetKeyValues(ctx, "batch_test", "a1", "b1", "zz")
	c.Assert(err, IsNil)
	c.Assert(values, HasLen, 2)
	c.Assert(string(values["a1"]), Equals, "one")
	c.Assert(values["b1"], DeepEquals, []byte{0, 0, 1})

	values, err = s.node.GetKeyValues(ctx, "batch_test")
	c.Assert(err, IsNil)
	c.Assert(values, HasLen, 0)

	type record struct {
		Name  string
		Count int
	}
	c.Assert(s.node.PutJSON(ctx, "batch_test", "json", record{"body", 3}), IsNil)
	var got record
	c.Assert(s.node.GetJSON(ctx, "batch_test", "json", &got), IsNil)
	c.Assert(got, Equals, record{"body", 3})

	data, err := s.node.CustomRequest(ctx, "batch_test/keyrange/a1/a2", "get", nil)
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, `["a1","a2"]`)
}

func (s *ClientSuite) TestGrayscale(c *C) {
	ctx := context.Background()
	_, err := s.node.CreateGrayscale8(ctx, "grayscale_test")
	c.Assert(err, IsNil)

	cube := randomGray(c, dvid.Point3d{128, 128, 128}, 42)
	c.Assert(s.node.PutGray3D(ctx, "grayscale_test", cube, dvid.Point3d{0, 0, 0}), IsNil)

	// a query within the written cube matches the same region of the cube
	qoffset := dvid.Point3d{30, 30, 30}
	qsize := dvid.Point3d{20, 20, 20}
	expected, err := cube.SubArray(qoffset, qsize)
	c.Assert(err, IsNil)
	got, err := s.node.GetGray3D(ctx, "grayscale_test", qoffset, qsize)
	c.Assert(err, IsNil)
	c.Assert(got.Equal(expected), Equals, true)

	for _, compression := range []string{"lz4", "gzip"} {
		got, err = s.node.GetGray3D(ctx, "grayscale_test", qoffset, qsize, Compress(compression))
		c.Assert(err, IsNil)
		c.Assert(got.Equal(expected), Equals, true, Commentf("compression %s", compression))
	}

	got, err = s.node.GetGray3D(ctx, "grayscale_test", dvid.Point3d{0, 0, 0}, cube.Size, Throttle())
	c.Assert(err, IsNil)
	c.Assert(got.Equal(cube), Equals, true)

	_, err = s.node.GetGray3D(ctx, "grayscale_test", qoffset, qsize, Compress("jpeg"))
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
	_, err = s.node.GetGray3D(ctx, "grayscale_test", qoffset, dvid.Point3d{0, 20, 20})
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
	_, err = s.node.GetGray3D(ctx, "grayscale_test", qoffset, dvid.Point3d{1 << 21, 1 << 21, 1 << 21})
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
	_, err = s.node.GetLabels3D(ctx, "grayscale_test", qoffset, dvid.Point3d{1 << 20, 1 << 20, 64})
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)

	bad := &dvid.Gray3D{Size: dvid.Point3d{4, 4, 4}, Data: make([]uint8, 10)}
	err = s.node.PutGray3D(ctx, "grayscale_test", bad, dvid.Point3d{0, 0, 0})
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
}

func (s *ClientSuite) TestChunkedTransfers(c *C) {
	ctx := context.Background()
	conn, err := NewConnection(s.srv.URL(), WithChunkDepth(7), WithMaxParallel(2))
	c.Assert(err, IsNil)
	node, err := NewNodeService(conn, string(s.uuid))
	c.Assert(err, IsNil)
	_, err = node.CreateGrayscale8(ctx, "chunked_test")
	c.Assert(err, IsNil)

	offset := dvid.Point3d{-10, 5, 17}
	vol := randomGray(c, dvid.Point3d{45, 33, 50}, 7)
	c.Assert(node.PutGray3D(ctx, "chunked_test", vol, offset, Throttle()), IsNil)

	got, err := node.GetGray3D(ctx, "chunked_test", offset, vol.Size, Compress("lz4"), Throttle())
	c.Assert(err, IsNil)
	c.Assert(got.Equal(vol), Equals, true)

	// reads through a connection with different chunking agree
	got, err = s.node.GetGray3D(ctx, "chunked_test", offset.Add(dvid.Point3d{3, 3, 3}), dvid.Point3d{10, 10, 40})
	c.Assert(err, IsNil)
	expected, err := vol.SubArray(dvid.Point3d{3, 3, 3}, dvid.Point3d{10, 10, 40})
	c.Assert(err, IsNil)
	c.Assert(got.Equal(expected), Equals, true)
}

func (s *ClientSuite) TestLabels(c *C) {
	ctx := context.Background()
	_, err := s.node.CreateLabelblk(ctx, "labels_test")
	c.Assert(err, IsNil)

	size := dvid.Point3d{40, 35, 70}
	vol, err := dvid.NewArray3D[uint64](size)
	c.Assert(err, IsNil)
	rnd := rand.New(rand.NewSource(11))
	for i := range vol.Data {
		vol.Data[i] = rnd.Uint64()
	}
	offset := dvid.Point3d{100, 200, 300}
	c.Assert(s.node.PutLabels3D(ctx, "labels_test", vol, offset), IsNil)

	got, err := s.node.GetLabels3D(ctx, "labels_test", offset, size, Compress("gzip"))
	c.Assert(err, IsNil)
	c.Assert(got.Equal(vol), Equals, true)

	qoffset := dvid.Point3d{110, 210, 310}
	qsize := dvid.Point3d{20, 20, 20}
	expected, err := vol.SubArray(qoffset.Sub(offset), qsize)
	c.Assert(err, IsNil)
	got, err = s.node.GetLabels3D(ctx, "labels_test", qoffset, qsize, Compress("lz4"))
	c.Assert(err, IsNil)
	c.Assert(got.Equal(expected), Equals, true)

	// ROI masking is not available on the test server
	_, err = s.node.GetLabels3D(ctx, "labels_test", qoffset, qsize, WithROI("someroi"))
	c.Assert(err, NotNil)
}

func (s *ClientSuite) TestValueCache(c *C) {
	ctx := context.Background()
	conn, err := NewConnection(s.srv.Address(), WithCache(1<<20))
	c.Assert(err, IsNil)
	node, err := NewNodeService(conn, string(s.uuid))
	c.Assert(err, IsNil)
	_, err = node.CreateKeyValue(ctx, "cache_test")
	c.Assert(err, IsNil)

	// written through another connection so the first read misses
	c.Assert(s.node.Put(ctx, "cache_test", "cached", []byte("value")), IsNil)
	for i := 0; i < 3; i++ {
		value, err := node.Get(ctx, "cache_test", "cached")
		c.Assert(err, IsNil)
		c.Assert(string(value), Equals, "value")
	}
	hits, misses := conn.CacheStats()
	c.Assert(hits, Equals, int64(2))
	c.Assert(misses, Equals, int64(1))

	c.Assert(node.Delete(ctx, "cache_test", "cached"), IsNil)
	_, err = node.Get(ctx, "cache_test", "cached")
	c.Assert(errors.Is(err, ErrNotFound), Equals, true)

	hits, misses = s.conn.CacheStats()
	c.Assert(hits, Equals, int64(0))
	c.Assert(misses, Equals, int64(0))
}

func (s *ClientSuite) TestValueCacheSharedByPrefixes(c *C) {
	ctx := context.Background()
	conn, err := NewConnection(s.srv.Address(), WithCache(1<<20))
	c.Assert(err, IsNil)
	full, err := NewNodeService(conn, string(s.uuid))
	c.Assert(err, IsNil)
	short, err := NewNodeService(conn, string(s.uuid[:8]))
	c.Assert(err, IsNil)
	_, err = full.CreateKeyValue(ctx, "prefix_cache_test")
	c.Assert(err, IsNil)

	c.Assert(full.Put(ctx, "prefix_cache_test", "k", []byte("old")), IsNil)
	value, err := full.Get(ctx, "prefix_cache_test", "k")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "old")

	c.Assert(short.Put(ctx, "prefix_cache_test", "k", []byte("new")), IsNil)
	value, err = full.Get(ctx, "prefix_cache_test", "k")
	c.Assert(err, IsNil)
	c.Assert(string(value), Equals, "new")

	c.Assert(short.Delete(ctx, "prefix_cache_test", "k"), IsNil)
	_, err = full.Get(ctx, "prefix_cache_test", "k")
	c.Assert(errors.Is(err, ErrNotFound), Equals, true)
	found, err := short.Exists(ctx, "prefix_cache_test", "k")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, false)
}

func (s *ClientSuite) TestAuthorization(c *C) {
	srv, err := dvidtest.NewServer(dvidtest.WithSecret("client secret"))
	c.Assert(err, IsNil)
	defer srv.Close()
	ctx := context.Background()

	noToken, err := NewConnection(srv.Address(), WithRetryPolicy(NoRetry))
	c.Assert(err, IsNil)
	_, err = NewServerService(noToken).ServerInfo(ctx)
	var respErr *ResponseError
	c.Assert(errors.As(err, &respErr), Equals, true)
	c.Assert(respErr.StatusCode, Equals, 401)

	token, err := srv.GenerateToken("alice")
	c.Assert(err, IsNil)
	conn, err := NewConnection(srv.Address(), WithToken(token))
	c.Assert(err, IsNil)
	c.Assert(conn.User(), Equals, "alice")
	uuid, err := NewServerService(conn).CreateNewRepo(ctx, "secure", "")
	c.Assert(err, IsNil)
	node, err := NewNodeService(conn, string(uuid))
	c.Assert(err, IsNil)
	created, err := node.CreateKeyValue(ctx, "secure_kv")
	c.Assert(err, IsNil)
	c.Assert(created, Equals, true)

	_, err = NewConnection(srv.Address(), WithToken("not a jwt"))
	c.Assert(errors.Is(err, ErrInvalidArgument), Equals, true)
}
