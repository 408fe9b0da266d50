package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// VolumeOptions modify voxel transfers.
type VolumeOptions struct {
	// Throttle asks the server to queue the request behind other throttled requests.
	Throttle bool

	// Compression of GET responses on the wire: "", "lz4" or "gzip".
	Compression string

	// ROI restricts GET responses to voxels within the named ROI; others are zero.
	ROI string
}

type VolumeOption func(*VolumeOptions)

// Throttle sets "throttle=true" on volume requests.
func Throttle() VolumeOption {
	return func(o *VolumeOptions) {
		o.Throttle = true
	}
}

// Compress requests "lz4" or "gzip" compressed GET responses.
func Compress(compression string) VolumeOption {
	return func(o *VolumeOptions) {
		o.Compression = compression
	}
}

// WithROI masks GET responses by the named ROI instance.
func WithROI(roi string) VolumeOption {
	return func(o *VolumeOptions) {
		o.ROI = roi
	}
}

func getVolumeOptions(opts []VolumeOption) (VolumeOptions, error) {
	var o VolumeOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch o.Compression {
	case "", "lz4", "gzip":
	default:
		return o, invalidArgf("compression must be \"lz4\" or \"gzip\", not %q", o.Compression)
	}
	return o, nil
}

// PutGray3D writes an 8-bit volume into a uint8blk instance with its first voxel at offset.
func (n *NodeService) PutGray3D(ctx context.Context, name dvid.InstanceName, vol *dvid.Gray3D, offset dvid.Point3d, opts ...VolumeOption) error {
	return putVolume(ctx, n, name, vol, offset, opts)
}

// GetGray3D reads the 8-bit volume of the given size with its first voxel at offset.
func (n *NodeService) GetGray3D(ctx context.Context, name dvid.InstanceName, offset, size dvid.Point3d, opts ...VolumeOption) (*dvid.Gray3D, error) {
	return getVolume[uint8](ctx, n, name, offset, size, opts)
}

// PutLabels3D writes a 64-bit label volume into a labelblk instance.
func (n *NodeService) PutLabels3D(ctx context.Context, name dvid.InstanceName, vol *dvid.Labels3D, offset dvid.Point3d, opts ...VolumeOption) error {
	return putVolume(ctx, n, name, vol, offset, opts)
}

// GetLabels3D reads the 64-bit label volume of the given size with its first voxel at offset.
func (n *NodeService) GetLabels3D(ctx context.Context, name dvid.InstanceName, offset, size dvid.Point3d, opts ...VolumeOption) (*dvid.Labels3D, error) {
	return getVolume[uint64](ctx, n, name, offset, size, opts)
}

func (n *NodeService) rawEndpoint(name dvid.InstanceName, offset, size dvid.Point3d) string {
	return n.nodeEndpoint(name, "raw", "0_1_2", size.Underscore(), offset.Underscore())
}

// slab is a Z range of a volume transfer given as a local offset and size.
type slab struct {
	offset dvid.Point3d
	size   dvid.Point3d
}

func (n *NodeService) slabs(size dvid.Point3d) []slab {
	depth := n.conn.chunkDepth
	var s []slab
	for z := int32(0); z < size[2]; z += depth {
		nz := depth
		if z+nz > size[2] {
			nz = size[2] - z
		}
		s = append(s, slab{
			offset: dvid.Point3d{0, 0, z},
			size:   dvid.Point3d{size[0], size[1], nz},
		})
	}
	return s
}

func putVolume[T dvid.Voxel](ctx context.Context, n *NodeService, name dvid.InstanceName, vol *dvid.Array3D[T], offset dvid.Point3d, opts []VolumeOption) error {
	if name == "" {
		return invalidArgf("data instance name is required")
	}
	if err := vol.Validate(); err != nil {
		return invalidArgf("%v", err)
	}
	o, err := getVolumeOptions(opts)
	if err != nil {
		return err
	}
	query := url.Values{}
	if o.Throttle {
		query.Set("throttle", "true")
	}

	timedLog := dvid.NewTimeLog()
	slabs := n.slabs(vol.Size)
	var sent atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.conn.maxParallel)
	for _, s := range slabs {
		s := s
		g.Go(func() error {
			sub := vol
			if len(slabs) > 1 {
				var err error
				if sub, err = vol.SubArray(s.offset, s.size); err != nil {
					return err
				}
			}
			body := sub.Bytes()
			endpoint := n.rawEndpoint(name, offset.Add(s.offset), s.size)
			if _, err := n.conn.Do(gctx, http.MethodPost, endpoint, query, body); err != nil {
				return err
			}
			sent.Add(uint64(len(body)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unable to write volume %s at %s into %q: %w", vol.Size, offset, name, err)
	}
	timedLog.Infof("Wrote %s volume (%s) at %s into %q in %d requests",
		vol.Size, humanize.Bytes(sent.Load()), offset, name, len(slabs))
	return nil
}

func getVolume[T dvid.Voxel](ctx context.Context, n *NodeService, name dvid.InstanceName, offset, size dvid.Point3d, opts []VolumeOption) (*dvid.Array3D[T], error) {
	if name == "" {
		return nil, invalidArgf("data instance name is required")
	}
	if _, err := size.VoxelCount(); err != nil {
		return nil, invalidArgf("bad volume size: %v", err)
	}
	o, err := getVolumeOptions(opts)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if o.Throttle {
		query.Set("throttle", "true")
	}
	if o.Compression != "" {
		query.Set("compression", o.Compression)
	}
	if o.ROI != "" {
		query.Set("roi", o.ROI)
	}

	timedLog := dvid.NewTimeLog()
	slabs := n.slabs(size)
	if len(slabs) == 1 {
		vol, received, err := getSlab[T](ctx, n, name, offset, size, query, o.Compression)
		if err != nil {
			return nil, err
		}
		timedLog.Debugf("Read %s volume (%s on wire) at %s from %q", size, humanize.Bytes(received), offset, name)
		return vol, nil
	}

	vol, err := dvid.NewArray3D[T](size)
	if err != nil {
		return nil, invalidArgf("%v", err)
	}
	var received atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.conn.maxParallel)
	for _, s := range slabs {
		s := s
		g.Go(func() error {
			sub, nbytes, err := getSlab[T](gctx, n, name, offset.Add(s.offset), s.size, query, o.Compression)
			if err != nil {
				return err
			}
			received.Add(nbytes)
			// slabs cover disjoint Z ranges of vol
			return vol.Paste(sub, s.offset)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("unable to read volume %s at %s from %q: %w", size, offset, name, err)
	}
	timedLog.Infof("Read %s volume (%s on wire) at %s from %q in %d requests",
		size, humanize.Bytes(received.Load()), offset, name, len(slabs))
	return vol, nil
}

func getSlab[T dvid.Voxel](ctx context.Context, n *NodeService, name dvid.InstanceName, offset, size dvid.Point3d, query url.Values, compression string) (*dvid.Array3D[T], uint64, error) {
	data, err := n.conn.Do(ctx, http.MethodGet, n.rawEndpoint(name, offset, size), query, nil)
	if err != nil {
		return nil, 0, err
	}
	received := uint64(len(data))
	expected := size.Prod() * int64(dvid.BytesPerVoxel[T]())
	switch compression {
	case "lz4":
		if data, err = dvid.UncompressLZ4Block(data, int(expected)); err != nil {
			return nil, received, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
	case "gzip":
		if data, err = dvid.UncompressGzip(data); err != nil {
			return nil, received, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
	}
	if int64(len(data)) != expected {
		return nil, received, fmt.Errorf("%w: expected %d bytes for volume %s at %s, got %d",
			ErrBadResponse, expected, size, offset, len(data))
	}
	vol, err := dvid.Array3DFromBytes[T](size, data)
	if err != nil {
		return nil, received, errors.Join(ErrBadResponse, err)
	}
	return vol, received, nil
}
