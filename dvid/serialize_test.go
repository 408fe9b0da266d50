package dvid

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSerializeData(t *testing.T) {
	value := []byte("I like Japan and this is some unicode: 日本語")
	for _, compression := range []Compression{Uncompressed, Snappy, LZ4, Gzip} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(value, compression, checksum)
			if err != nil {
				t.Fatalf("can't serialize with %s, %s: %v\n", compression, checksum, err)
			}
			if len(s) == 0 {
				t.Fatalf("bad SerializeData() with %s - output length 0\n", compression)
			}
			got, compress, err := DeserializeData(s, true)
			if err != nil {
				t.Fatalf("can't deserialize with %s, %s: %v\n", compression, checksum, err)
			}
			if compress != compression {
				t.Errorf("expected compression %s, got %s\n", compression, compress)
			}
			if !bytes.Equal(got, value) {
				t.Errorf("bad round trip with %s, %s: got %q\n", compression, checksum, got)
			}
		}
	}
}

func TestSerializeBadChecksum(t *testing.T) {
	value := []byte("here's another string with enough bytes to flip")
	s, err := SerializeData(value, Snappy, CRC32)
	if err != nil {
		t.Fatalf("can't serialize: %v\n", err)
	}
	s[len(s)-1] ^= 0x04 // Flip a bit
	if _, _, err := DeserializeData(s, true); err == nil {
		t.Fatalf("expected checksum error after flipping bit\n")
	}
}

func TestLZ4Block(t *testing.T) {
	compressible := bytes.Repeat([]byte("abcd"), 4096)
	random := make([]byte, 70000)
	rand.New(rand.NewSource(42)).Read(random)

	for _, data := range [][]byte{compressible, random, []byte("tiny"), make([]byte, 300)} {
		compressed, err := CompressLZ4Block(data)
		if err != nil {
			t.Fatalf("can't lz4 compress %d bytes: %v\n", len(data), err)
		}
		got, err := UncompressLZ4Block(compressed, len(data))
		if err != nil {
			t.Fatalf("can't lz4 uncompress %d bytes: %v\n", len(data), err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("lz4 round trip of %d bytes failed\n", len(data))
		}
	}
	if len(compressible) <= 1000 {
		t.Fatalf("bad test setup\n")
	}
	compressed, _ := CompressLZ4Block(compressible)
	if len(compressed) >= len(compressible) {
		t.Errorf("expected repetitive data to compress, got %d -> %d bytes\n", len(compressible), len(compressed))
	}
}

func TestGzip(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1000)
	compressed, err := CompressGzip(data)
	if err != nil {
		t.Fatalf("can't gzip: %v\n", err)
	}
	got, err := UncompressGzip(compressed)
	if err != nil {
		t.Fatalf("can't gunzip: %v\n", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("gzip round trip failed\n")
	}
	if _, err := UncompressGzip([]byte("not gzip")); err == nil {
		t.Errorf("expected error on bad gzip data\n")
	}
}
