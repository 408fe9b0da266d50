package client

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/proto"
)

func (n *NodeService) keyEndpoint(name dvid.InstanceName, key string) string {
	return n.nodeEndpoint(name, "key", url.PathEscape(key))
}

func checkKey(name dvid.InstanceName, key string) error {
	if name == "" {
		return invalidArgf("data instance name is required")
	}
	if key == "" {
		return invalidArgf("key is required for instance %q", name)
	}
	return nil
}

// Put stores a value at the key of a keyvalue instance.
func (n *NodeService) Put(ctx context.Context, name dvid.InstanceName, key string, value []byte) error {
	if err := checkKey(name, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := n.conn.Do(ctx, http.MethodPost, n.keyEndpoint(name, key), nil, value)
	uuid, cached := n.cacheUUID(ctx)
	switch {
	case !cached:
		n.conn.cache.clear()
	case err != nil:
		n.conn.cache.del(uuid, name, key)
	default:
		n.conn.cache.set(uuid, name, key, value)
	}
	return err
}

// PutValue stores a value that is a []byte, a string, or an encoding.BinaryMarshaler.
// Any other type is rejected with ErrInvalidArgument without contacting the server.
func (n *NodeService) PutValue(ctx context.Context, name dvid.InstanceName, key string, value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case encoding.BinaryMarshaler:
		var err error
		if data, err = v.MarshalBinary(); err != nil {
			return fmt.Errorf("unable to marshal value for key %q: %w", key, err)
		}
	default:
		return invalidArgf("value for key %q must be a byte buffer, not %T", key, value)
	}
	return n.Put(ctx, name, key, data)
}

// PutJSON stores the JSON encoding of v.
func (n *NodeService) PutJSON(ctx context.Context, name dvid.InstanceName, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return invalidArgf("value for key %q can't be encoded as JSON: %v", key, err)
	}
	return n.Put(ctx, name, key, data)
}

// Get returns the value at the key.  A missing key returns an error matching ErrNotFound.
func (n *NodeService) Get(ctx context.Context, name dvid.InstanceName, key string) ([]byte, error) {
	if err := checkKey(name, key); err != nil {
		return nil, err
	}
	uuid, cached := n.cacheUUID(ctx)
	if cached {
		if value, found := n.conn.cache.get(uuid, name, key); found {
			return value, nil
		}
	}
	value, err := n.conn.Do(ctx, http.MethodGet, n.keyEndpoint(name, key), nil, nil)
	if err != nil {
		return nil, err
	}
	if cached {
		n.conn.cache.set(uuid, name, key, value)
	}
	return value, nil
}

// GetJSON decodes the JSON value at the key into v.
func (n *NodeService) GetJSON(ctx context.Context, name dvid.InstanceName, key string, v interface{}) error {
	data, err := n.Get(ctx, name, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("value of key %q in %q is not valid JSON: %w", key, name, err)
	}
	return nil
}

// Exists returns true if the key has a value.
func (n *NodeService) Exists(ctx context.Context, name dvid.InstanceName, key string) (bool, error) {
	if err := checkKey(name, key); err != nil {
		return false, err
	}
	if uuid, cached := n.cacheUUID(ctx); cached {
		if _, found := n.conn.cache.get(uuid, name, key); found {
			return true, nil
		}
	}
	_, err := n.conn.Do(ctx, http.MethodHead, n.keyEndpoint(name, key), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the key.
func (n *NodeService) Delete(ctx context.Context, name dvid.InstanceName, key string) error {
	if err := checkKey(name, key); err != nil {
		return err
	}
	if uuid, cached := n.cacheUUID(ctx); cached {
		n.conn.cache.del(uuid, name, key)
	} else {
		n.conn.cache.clear()
	}
	_, err := n.conn.Do(ctx, http.MethodDelete, n.keyEndpoint(name, key), nil, nil)
	return err
}

func decodeKeys(data []byte) ([]string, error) {
	keys := []string{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: expected JSON list of keys: %v", ErrBadResponse, err)
	}
	return keys, nil
}

// Keys returns all keys of the instance in lexicographic order.
func (n *NodeService) Keys(ctx context.Context, name dvid.InstanceName) ([]string, error) {
	if name == "" {
		return nil, invalidArgf("data instance name is required")
	}
	data, err := n.conn.Do(ctx, http.MethodGet, n.nodeEndpoint(name, "keys"), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeKeys(data)
}

// KeyRange returns the keys between begKey and endKey inclusive.
func (n *NodeService) KeyRange(ctx context.Context, name dvid.InstanceName, begKey, endKey string) ([]string, error) {
	if name == "" {
		return nil, invalidArgf("data instance name is required")
	}
	if begKey == "" || endKey == "" {
		return nil, invalidArgf("key range requires both beginning and ending keys")
	}
	endpoint := n.nodeEndpoint(name, "keyrange", url.PathEscape(begKey), url.PathEscape(endKey))
	data, err := n.conn.Do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeKeys(data)
}

// GetKeyValues returns the values of the given keys.  Keys without values are
// absent from the returned map.
func (n *NodeService) GetKeyValues(ctx context.Context, name dvid.InstanceName, keys ...string) (map[string][]byte, error) {
	if name == "" {
		return nil, invalidArgf("data instance name is required")
	}
	kvmap := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return kvmap, nil
	}
	req := proto.Keys{Keys: keys}
	data, err := n.conn.Do(ctx, http.MethodGet, n.nodeEndpoint(name, "keyvalues"), nil, req.Marshal())
	if err != nil {
		return nil, err
	}
	var kvs proto.KeyValues
	if err := kvs.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: keyvalues response: %v", ErrBadResponse, err)
	}
	uuid, cached := n.cacheUUID(ctx)
	for _, kv := range kvs.Kvs {
		kvmap[kv.Key] = kv.Value
		if cached {
			n.conn.cache.set(uuid, name, kv.Key, kv.Value)
		}
	}
	return kvmap, nil
}

// PutKeyValues stores many key-value pairs in one request.
func (n *NodeService) PutKeyValues(ctx context.Context, name dvid.InstanceName, kvmap map[string][]byte) error {
	if name == "" {
		return invalidArgf("data instance name is required")
	}
	if len(kvmap) == 0 {
		return nil
	}
	var kvs proto.KeyValues
	for key, value := range kvmap {
		if key == "" {
			return invalidArgf("empty key in batch for instance %q", name)
		}
		kvs.Kvs = append(kvs.Kvs, &proto.KeyValue{Key: key, Value: value})
	}
	_, err := n.conn.Do(ctx, http.MethodPost, n.nodeEndpoint(name, "keyvalues"), nil, kvs.Marshal())
	uuid, cached := n.cacheUUID(ctx)
	if !cached {
		n.conn.cache.clear()
		return err
	}
	for key, value := range kvmap {
		if err != nil {
			n.conn.cache.del(uuid, name, key)
		} else {
			n.conn.cache.set(uuid, name, key, value)
		}
	}
	return err
}
