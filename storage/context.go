/*
	This file contains types that manage valid key space within a key-value database.
*/

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// Context partitions the key space of a database.  Metadata and each data instance
// get their own partition so that range queries never cross them.
type Context interface {
	// ConstructKey takes a type-specific key component, and generates a
	// namespaced key that fits with the database-wide key space partitioning.
	ConstructKey(TKey) Key

	// TKeyFromKey returns the type-specific component of the key.
	TKeyFromKey(Key) (TKey, error)

	// String prints a description of the Context
	String() string
}

const (
	metadataKeyPrefix byte = iota
	dataKeyPrefix
)

// MetadataContext is an implementation of Context for metadata persistence.
type MetadataContext struct{}

func NewMetadataContext() MetadataContext {
	return MetadataContext{}
}

func (ctx MetadataContext) ConstructKey(tk TKey) Key {
	return Key(append([]byte{metadataKeyPrefix}, tk...))
}

func (ctx MetadataContext) TKeyFromKey(key Key) (TKey, error) {
	if len(key) == 0 || key[0] != metadataKeyPrefix {
		return nil, fmt.Errorf("Cannot extract MetadataContext index from different key")
	}
	return TKey(key[1:]), nil
}

func (ctx MetadataContext) String() string {
	return "Metadata Context"
}

// InstanceID is a compact local identifier for a data instance used in keys.
type InstanceID uint32

const InstanceIDSize = 4

func (id InstanceID) Bytes() []byte {
	var b [InstanceIDSize]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b[:]
}

// DataContext holds the key space of one data instance.
type DataContext struct {
	name       dvid.InstanceName
	instanceID InstanceID
}

func NewDataContext(name dvid.InstanceName, id InstanceID) *DataContext {
	return &DataContext{name, id}
}

func (ctx *DataContext) DataName() dvid.InstanceName {
	return ctx.name
}

func (ctx *DataContext) InstanceID() InstanceID {
	return ctx.instanceID
}

func (ctx *DataContext) ConstructKey(tk TKey) Key {
	key := append([]byte{dataKeyPrefix}, ctx.instanceID.Bytes()...)
	return Key(append(key, tk...))
}

func (ctx *DataContext) TKeyFromKey(key Key) (TKey, error) {
	if len(key) < 1+InstanceIDSize {
		return nil, fmt.Errorf("Cannot extract DataContext type-specific key component from %d byte key", len(key))
	}
	if key[0] != dataKeyPrefix {
		return nil, fmt.Errorf("Cannot extract DataContext type-specific key component from key type %v", key[0])
	}
	return TKey(key[1+InstanceIDSize:]), nil
}

func (ctx *DataContext) String() string {
	return fmt.Sprintf("Data Context for %q (local id %d)", ctx.name, ctx.instanceID)
}
