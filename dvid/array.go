package dvid

import (
	"encoding/binary"
	"fmt"
)

// Voxel is the set of voxel value types transferable as dense 3d arrays.
type Voxel interface {
	uint8 | uint64
}

// Array3D is a dense 3d array of voxels.  Data is stored in ZYX order with X
// varying fastest, which is also the byte order DVID uses for 3d "raw" requests.
type Array3D[T Voxel] struct {
	Size Point3d
	Data []T
}

// Gray3D is a grayscale volume of 8-bit samples.
type Gray3D = Array3D[uint8]

// Labels3D is a label volume of 64-bit identifiers.
type Labels3D = Array3D[uint64]

// NewArray3D returns a zeroed array of the given size.
func NewArray3D[T Voxel](size Point3d) (*Array3D[T], error) {
	n, err := size.VoxelCount()
	if err != nil {
		return nil, fmt.Errorf("bad array size: %v", err)
	}
	return &Array3D[T]{
		Size: size,
		Data: make([]T, n),
	}, nil
}

// BytesPerVoxel returns the number of bytes in the wire encoding of one voxel.
func BytesPerVoxel[T Voxel]() int {
	var v T
	switch any(v).(type) {
	case uint64:
		return 8
	default:
		return 1
	}
}

// NumVoxels returns the number of voxels in the array.
func (a *Array3D[T]) NumVoxels() int64 {
	return a.Size.Prod()
}

// Validate checks that the data length agrees with the array size.
func (a *Array3D[T]) Validate() error {
	if a == nil {
		return fmt.Errorf("nil array")
	}
	n, err := a.Size.VoxelCount()
	if err != nil {
		return fmt.Errorf("bad array size: %v", err)
	}
	if int64(len(a.Data)) != n {
		return fmt.Errorf("array of size %s should have %d voxels, has %d", a.Size, n, len(a.Data))
	}
	return nil
}

// Index returns the position within Data of the voxel at local coordinate (x,y,z).
func (a *Array3D[T]) Index(x, y, z int32) int {
	return int(z)*int(a.Size[1])*int(a.Size[0]) + int(y)*int(a.Size[0]) + int(x)
}

func (a *Array3D[T]) At(x, y, z int32) T {
	return a.Data[a.Index(x, y, z)]
}

func (a *Array3D[T]) Set(x, y, z int32, v T) {
	a.Data[a.Index(x, y, z)] = v
}

// contains returns true if the box at offset with given size lies within the array.
func (a *Array3D[T]) contains(offset, size Point3d) bool {
	for i := 0; i < 3; i++ {
		if offset[i] < 0 || size[i] <= 0 || offset[i]+size[i] > a.Size[i] {
			return false
		}
	}
	return true
}

// SubArray returns a copy of the rectangular region starting at the local offset
// with the given size.  The region must lie within the array.
func (a *Array3D[T]) SubArray(offset, size Point3d) (*Array3D[T], error) {
	if !a.contains(offset, size) {
		return nil, fmt.Errorf("region of size %s at %s is outside array of size %s", size, offset, a.Size)
	}
	sub := &Array3D[T]{
		Size: size,
		Data: make([]T, size.Prod()),
	}
	nx := int(size[0])
	for z := int32(0); z < size[2]; z++ {
		for y := int32(0); y < size[1]; y++ {
			src := a.Index(offset[0], offset[1]+y, offset[2]+z)
			dst := sub.Index(0, y, z)
			copy(sub.Data[dst:dst+nx], a.Data[src:src+nx])
		}
	}
	return sub, nil
}

// Paste copies src into the receiver with src's origin at the local offset.
func (a *Array3D[T]) Paste(src *Array3D[T], offset Point3d) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if !a.contains(offset, src.Size) {
		return fmt.Errorf("cannot paste array of size %s at %s into array of size %s", src.Size, offset, a.Size)
	}
	nx := int(src.Size[0])
	for z := int32(0); z < src.Size[2]; z++ {
		for y := int32(0); y < src.Size[1]; y++ {
			s := src.Index(0, y, z)
			d := a.Index(offset[0], offset[1]+y, offset[2]+z)
			copy(a.Data[d:d+nx], src.Data[s:s+nx])
		}
	}
	return nil
}

// Equal returns true if both arrays have the same size and voxel values.
func (a *Array3D[T]) Equal(b *Array3D[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Size != b.Size || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// Bytes returns the little-endian wire encoding of the voxels.  For 8-bit arrays the
// returned slice shares memory with Data.
func (a *Array3D[T]) Bytes() []byte {
	switch data := any(a.Data).(type) {
	case []uint8:
		return data
	case []uint64:
		b := make([]byte, 8*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint64(b[i*8:], v)
		}
		return b
	}
	return nil
}

// Array3DFromBytes decodes the little-endian wire encoding of an array of the given size.
func Array3DFromBytes[T Voxel](size Point3d, b []byte) (*Array3D[T], error) {
	n, err := size.VoxelCount()
	if err != nil {
		return nil, fmt.Errorf("bad array size: %v", err)
	}
	bpv := BytesPerVoxel[T]()
	expected := n * int64(bpv)
	if int64(len(b)) != expected {
		return nil, fmt.Errorf("expected %d bytes for array of size %s, got %d", expected, size, len(b))
	}
	a := &Array3D[T]{Size: size}
	switch data := any(&a.Data).(type) {
	case *[]uint8:
		*data = b
	case *[]uint64:
		vals := make([]uint64, len(b)/8)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint64(b[i*8:])
		}
		*data = vals
	}
	return a, nil
}
