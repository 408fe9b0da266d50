/*
	Package proto holds the wire messages used by DVID's keyvalue batch endpoints:

		message KeyValue {
			string key = 1;
			bytes value = 2;
		}

		message Keys {
			repeated string keys = 1;
		}

		message KeyValues {
			repeated KeyValue kvs = 1;
		}

	The messages are small and fixed, so they are encoded directly with protowire.
*/
package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	keyValueKeyField   protowire.Number = 1
	keyValueValueField protowire.Number = 2
	keysField          protowire.Number = 1
	kvsField           protowire.Number = 1
)

type KeyValue struct {
	Key   string
	Value []byte
}

type Keys struct {
	Keys []string
}

type KeyValues struct {
	Kvs []*KeyValue
}

func (kv *KeyValue) Marshal() []byte {
	var b []byte
	if kv.Key != "" {
		b = protowire.AppendTag(b, keyValueKeyField, protowire.BytesType)
		b = protowire.AppendString(b, kv.Key)
	}
	if len(kv.Value) != 0 {
		b = protowire.AppendTag(b, keyValueValueField, protowire.BytesType)
		b = protowire.AppendBytes(b, kv.Value)
	}
	return b
}

func (kv *KeyValue) Unmarshal(b []byte) error {
	*kv = KeyValue{}
	return walkFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case keyValueKeyField:
			kv.Key = string(v)
		case keyValueValueField:
			kv.Value = append([]byte(nil), v...)
		}
		return nil
	})
}

func (k *Keys) Marshal() []byte {
	var b []byte
	for _, key := range k.Keys {
		b = protowire.AppendTag(b, keysField, protowire.BytesType)
		b = protowire.AppendString(b, key)
	}
	return b
}

func (k *Keys) Unmarshal(b []byte) error {
	k.Keys = nil
	return walkFields(b, func(num protowire.Number, v []byte) error {
		if num == keysField {
			k.Keys = append(k.Keys, string(v))
		}
		return nil
	})
}

func (kvs *KeyValues) Marshal() []byte {
	var b []byte
	for _, kv := range kvs.Kvs {
		b = protowire.AppendTag(b, kvsField, protowire.BytesType)
		b = protowire.AppendBytes(b, kv.Marshal())
	}
	return b
}

func (kvs *KeyValues) Unmarshal(b []byte) error {
	kvs.Kvs = nil
	return walkFields(b, func(num protowire.Number, v []byte) error {
		if num != kvsField {
			return nil
		}
		kv := new(KeyValue)
		if err := kv.Unmarshal(v); err != nil {
			return err
		}
		kvs.Kvs = append(kvs.Kvs, kv)
		return nil
	})
}

// walkFields calls fn for every length-delimited field and skips all others.
func walkFields(b []byte, fn func(protowire.Number, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("bad protobuf tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("bad protobuf field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("bad protobuf bytes in field %d: %v", num, protowire.ParseError(n))
		}
		if err := fn(num, v); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
