/*
	This file supports serialization/deserialization and compression of data.
*/

package dvid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Compression is the format of compression for storing or transmitting data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = iota
	Snappy
	LZ4
	Gzip
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "No compression"
	case Snappy:
		return "Go Snappy compression"
	case LZ4:
		return "LZ4 compression"
	case Gzip:
		return "gzip compression"
	default:
		return "Unknown compression"
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = iota
	CRC32
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

// SerializeData serializes a slice of bytes using optional compression and checksum.
// The format byte comes first, then any checksum, then the possibly compressed data.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte(byte(EncodeSerializationFormat(compress, checksum)))

	var byteData []byte
	switch compress {
	case Uncompressed:
		byteData = data
	case Snappy:
		byteData = snappy.Encode(nil, data)
	case LZ4:
		compressed, err := CompressLZ4Block(data)
		if err != nil {
			return nil, err
		}
		byteData = make([]byte, 4+len(compressed))
		binary.LittleEndian.PutUint32(byteData[0:4], uint32(len(data)))
		copy(byteData[4:], compressed)
	case Gzip:
		var err error
		if byteData, err = CompressGzip(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("illegal compression (%s) during serialization", compress)
	}

	switch checksum {
	case NoChecksum:
	case CRC32:
		var crc [4]byte
		binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(byteData))
		buffer.Write(crc[:])
	default:
		return nil, fmt.Errorf("illegal checksum (%s) during serialization", checksum)
	}

	buffer.Write(byteData)
	return buffer.Bytes(), nil
}

// DeserializeData deserializes a slice of bytes using stored compression and checksum.
// If uncompress is false, the data is returned still compressed.
func DeserializeData(s []byte, uncompress bool) (data []byte, compress Compression, err error) {
	if len(s) == 0 {
		err = fmt.Errorf("cannot deserialize empty slice")
		return
	}
	var checksum Checksum
	compress, checksum = DecodeSerializationFormat(SerializationFormat(s[0]))
	cdata := s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(cdata) < 4 {
			err = fmt.Errorf("serialized data too short (%d bytes) for CRC32 checksum", len(s))
			return
		}
		stored := binary.LittleEndian.Uint32(cdata[0:4])
		cdata = cdata[4:]
		if computed := crc32.ChecksumIEEE(cdata); computed != stored {
			err = fmt.Errorf("bad checksum.  Stored %x got %x", stored, computed)
			return
		}
	default:
		err = fmt.Errorf("illegal checksum in deserializing data")
		return
	}

	if !uncompress {
		data = cdata
		return
	}
	switch compress {
	case Uncompressed:
		data = cdata
	case Snappy:
		data, err = snappy.Decode(nil, cdata)
	case LZ4:
		if len(cdata) < 4 {
			err = fmt.Errorf("LZ4 serialization missing original size")
			return
		}
		origSize := binary.LittleEndian.Uint32(cdata[0:4])
		data, err = UncompressLZ4Block(cdata[4:], int(origSize))
	case Gzip:
		data, err = UncompressGzip(cdata)
	default:
		err = fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
	return
}

// CompressLZ4Block returns data as a single raw LZ4 block without framing, the format
// DVID uses for "compression=lz4" transfers.  The receiver must know the uncompressed size.
func CompressLZ4Block(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 && len(data) > 0 {
		// incompressible input is emitted as one literal run
		return literalLZ4Block(data), nil
	}
	return compressed[:n], nil
}

func literalLZ4Block(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/255+16)
	n := len(data)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		rem := n - 15
		for rem >= 255 {
			out = append(out, 255)
			rem -= 255
		}
		out = append(out, byte(rem))
	}
	return append(out, data...)
}

// UncompressLZ4Block decompresses a raw LZ4 block that should expand to size bytes.
func UncompressLZ4Block(compressed []byte, size int) ([]byte, error) {
	data := make([]byte, size)
	if size == 0 {
		return data, nil
	}
	n, err := lz4.UncompressBlock(compressed, data)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression: %v", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 block expanded to %d bytes, expected %d", n, size)
	}
	return data, nil
}

// CompressGzip returns gzip compressed data.
func CompressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UncompressGzip returns the uncompressed contents of gzip data.
func UncompressGzip(compressed []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	if err = gr.Close(); err != nil {
		return nil, err
	}
	return data, nil
}
