package proto

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestKeyValues(t *testing.T) {
	kvs := KeyValues{
		Kvs: []*KeyValue{
			{Key: "kkkk", Value: []byte("vvvv")},
			{Key: "empty"},
			{Key: "binary", Value: []byte{0, 1, 2, 255}},
		},
	}
	var got KeyValues
	if err := got.Unmarshal(kvs.Marshal()); err != nil {
		t.Fatalf("can't unmarshal KeyValues: %v\n", err)
	}
	if len(got.Kvs) != 3 {
		t.Fatalf("expected 3 key-values, got %d\n", len(got.Kvs))
	}
	for i, kv := range kvs.Kvs {
		if got.Kvs[i].Key != kv.Key || !bytes.Equal(got.Kvs[i].Value, kv.Value) {
			t.Errorf("key-value %d: expected %q=%v, got %q=%v\n", i, kv.Key, kv.Value, got.Kvs[i].Key, got.Kvs[i].Value)
		}
	}
}

func TestKeysSkipsUnknownFields(t *testing.T) {
	keys := Keys{Keys: []string{"a", "b/c", "日本"}}
	b := keys.Marshal()
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	var got Keys
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("can't unmarshal Keys: %v\n", err)
	}
	if len(got.Keys) != 3 || got.Keys[2] != "日本" {
		t.Errorf("bad keys: %v\n", got.Keys)
	}
	if err := got.Unmarshal([]byte{0x0a, 0x05, 'a'}); err == nil {
		t.Errorf("expected error on truncated message\n")
	}
}
