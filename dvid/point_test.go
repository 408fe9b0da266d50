package dvid

import "testing"

func TestStringToPoint3d(t *testing.T) {
	p, err := StringToPoint3d("10_-20_30", "_")
	if err != nil {
		t.Fatalf("can't parse point: %v\n", err)
	}
	if p != (Point3d{10, -20, 30}) {
		t.Errorf("bad parse: %s\n", p)
	}
	if p.Underscore() != "10_-20_30" {
		t.Errorf("bad underscore string: %s\n", p.Underscore())
	}
	if _, err := StringToPoint3d("1,2", ","); err == nil {
		t.Errorf("expected error on 2d string\n")
	}
	if _, err := StringToPoint3d("1,b,2", ","); err == nil {
		t.Errorf("expected error on non-integer\n")
	}
}

func TestPoint3dMath(t *testing.T) {
	a := Point3d{30, 30, 30}
	b := Point3d{10, 20, 30}
	if a.Sub(b) != (Point3d{20, 10, 0}) {
		t.Errorf("bad Sub: %s\n", a.Sub(b))
	}
	if a.Add(b) != (Point3d{40, 50, 60}) {
		t.Errorf("bad Add: %s\n", a.Add(b))
	}
	if b.Prod() != 6000 {
		t.Errorf("bad Prod: %d\n", b.Prod())
	}
	if (Point3d{1, 0, 1}).Positive() {
		t.Errorf("zero dimension should not be positive\n")
	}
	chunk := Point3d{-1, 31, 32}.Chunk(Point3d{32, 32, 32})
	if chunk != (Point3d{-1, 0, 1}) {
		t.Errorf("bad chunk coordinate: %s\n", chunk)
	}
}

func TestVoxelCount(t *testing.T) {
	n, err := Point3d{10, 20, 30}.VoxelCount()
	if err != nil || n != 6000 {
		t.Errorf("bad voxel count %d, err %v\n", n, err)
	}
	if _, err := (Point3d{1, -1, 1}).VoxelCount(); err == nil {
		t.Errorf("expected error for negative dimension\n")
	}
	huge := []Point3d{
		{1 << 21, 1 << 21, 1 << 21},
		{1<<31 - 1, 1<<31 - 1, 1<<31 - 1},
		{1 << 16, 1 << 16, 2},
	}
	for _, size := range huge {
		if _, err := size.VoxelCount(); err == nil {
			t.Errorf("expected error for size %s\n", size)
		}
	}
	if n, err := (Point3d{1 << 16, 1 << 16, 1}).VoxelCount(); err != nil || n != MaxVoxels {
		t.Errorf("bad voxel count %d at the limit, err %v\n", n, err)
	}
}
