/*
	This file contains the Key types and the key-value pairs returned by range queries.

	Values are simply []byte at this level.  We assume value serialization and
	compression occur above the storage level.
*/

package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// Key is the full key stored in the database, including the context prefix.
type Key []byte

// TKey is the type-specific component of a key.  Each data type decides how to
// partition its own key space, e.g., keyvalue keys vs. voxel block coordinates.
type TKey []byte

// TKeyClass partitions the type-specific key space of one data instance.
type TKeyClass byte

const (
	// TKeyKeyValue holds keyvalue entries.
	TKeyKeyValue TKeyClass = 'k'

	// TKeyBlock holds serialized voxel blocks indexed by block coordinate.
	TKeyBlock TKeyClass = 'b'
)

// NewTKey returns a type-specific key with the given class and body.
func NewTKey(class TKeyClass, body []byte) TKey {
	tk := make(TKey, 1+len(body))
	tk[0] = byte(class)
	copy(tk[1:], body)
	return tk
}

// ClassBytes returns the body of a type-specific key if it has the given class.
func (tk TKey) ClassBytes(class TKeyClass) ([]byte, error) {
	if len(tk) == 0 {
		return nil, fmt.Errorf("empty type-specific key")
	}
	if TKeyClass(tk[0]) != class {
		return nil, fmt.Errorf("type-specific key has class %q, expected %q", tk[0], class)
	}
	return tk[1:], nil
}

// BlockTKey returns the key of the voxel block at the given block coordinate.  The
// coordinates are encoded so that keys sort in Z, Y, then X order.
func BlockTKey(bcoord dvid.Point3d) TKey {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(bcoord[2])^0x80000000)
	binary.BigEndian.PutUint32(buf[4:8], uint32(bcoord[1])^0x80000000)
	binary.BigEndian.PutUint32(buf[8:12], uint32(bcoord[0])^0x80000000)
	return NewTKey(TKeyBlock, buf[:])
}

// BlockCoordFromTKey decodes a key made by BlockTKey.
func BlockCoordFromTKey(tk TKey) (dvid.Point3d, error) {
	b, err := tk.ClassBytes(TKeyBlock)
	if err != nil {
		return dvid.Point3d{}, err
	}
	if len(b) != 12 {
		return dvid.Point3d{}, fmt.Errorf("block key has %d bytes, expected 12", len(b))
	}
	return dvid.Point3d{
		int32(binary.BigEndian.Uint32(b[8:12]) ^ 0x80000000),
		int32(binary.BigEndian.Uint32(b[4:8]) ^ 0x80000000),
		int32(binary.BigEndian.Uint32(b[0:4]) ^ 0x80000000),
	}, nil
}

// KeyValue stores a full key-value pair.
type KeyValue struct {
	K Key
	V []byte
}

// TKeyValue stores a type-specific key-value pair.
type TKeyValue struct {
	K TKey
	V []byte
}

// Deserialize returns a key-value pair where the value has been deserialized.
func (kv TKeyValue) Deserialize(uncompress bool) (TKeyValue, error) {
	value, _, err := dvid.DeserializeData(kv.V, uncompress)
	return TKeyValue{kv.K, value}, err
}

// TKeyValues is a slice of type-specific key-value pairs that can be sorted.
type TKeyValues []TKeyValue

func (kv TKeyValues) Len() int      { return len(kv) }
func (kv TKeyValues) Swap(i, j int) { kv[i], kv[j] = kv[j], kv[i] }
func (kv TKeyValues) Less(i, j int) bool {
	return bytes.Compare(kv[i].K, kv[j].K) < 0
}
