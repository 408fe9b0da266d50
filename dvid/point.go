package dvid

import (
	"fmt"
	"strconv"
	"strings"
)

// Point3d is an ordered list of three 32-bit signed integers: x, y, z.
type Point3d [3]int32

// StringToPoint3d parses a string of three integers separated by sep, e.g., "10_20_30".
func StringToPoint3d(str, sep string) (Point3d, error) {
	elems := strings.Split(str, sep)
	if len(elems) != 3 {
		return Point3d{}, fmt.Errorf("cannot convert %q into a 3d point using separator %q", str, sep)
	}
	var p Point3d
	for i, elem := range elems {
		v, err := strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return Point3d{}, fmt.Errorf("cannot parse %q in point %q: %v", elem, str, err)
		}
		p[i] = int32(v)
	}
	return p, nil
}

func (p Point3d) Add(x Point3d) Point3d {
	return Point3d{p[0] + x[0], p[1] + x[1], p[2] + x[2]}
}

func (p Point3d) Sub(x Point3d) Point3d {
	return Point3d{p[0] - x[0], p[1] - x[1], p[2] - x[2]}
}

// Prod returns the product of the point's elements, i.e., the number of voxels
// if the point is a size.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

// MaxVoxels is the largest number of voxels in a volume this package will allocate
// or request.
const MaxVoxels = int64(1) << 32

// VoxelCount returns the number of voxels in a volume of this size, or an error if a
// dimension isn't positive or the count exceeds MaxVoxels.
func (p Point3d) VoxelCount() (int64, error) {
	if !p.Positive() {
		return 0, fmt.Errorf("size %s must be positive in all dimensions", p)
	}
	// each factor is below 2^31 so neither partial product can overflow
	xy := int64(p[0]) * int64(p[1])
	if xy > MaxVoxels || xy*int64(p[2]) > MaxVoxels {
		return 0, fmt.Errorf("size %s exceeds the maximum of %d voxels", p, MaxVoxels)
	}
	return xy * int64(p[2]), nil
}

// Positive returns true if every element is greater than zero.
func (p Point3d) Positive() bool {
	return p[0] > 0 && p[1] > 0 && p[2] > 0
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Underscore returns the point in the "x_y_z" form used in DVID HTTP API URLs.
func (p Point3d) Underscore() string {
	return fmt.Sprintf("%d_%d_%d", p[0], p[1], p[2])
}

// Chunk returns the chunk space coordinate of the chunk of the given size containing the point.
func (p Point3d) Chunk(size Point3d) Point3d {
	var c Point3d
	for i := 0; i < 3; i++ {
		if p[i] < 0 {
			c[i] = (p[i] - size[i] + 1) / size[i]
		} else {
			c[i] = p[i] / size[i]
		}
	}
	return c
}
