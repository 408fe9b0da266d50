package dvidtest

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/storage"
)

// blockSize is the size in voxels of the blocks voxel data is stored in.
var blockSize = dvid.Point3d{32, 32, 32}

// Voxel data of any type is handled as bytes: a volume of nx voxels with b bytes per
// voxel is a byte volume nx*b wide, so subvolume copies work on whole voxels.
func byteSize(p dvid.Point3d, bytesPerVoxel int32) dvid.Point3d {
	return dvid.Point3d{p[0] * bytesPerVoxel, p[1], p[2]}
}

// blockCompression is the format of stored voxel blocks.
const blockCompression = dvid.LZ4

// blockRegion is the intersection of a request's subvolume with one block.
type blockRegion struct {
	bcoord    dvid.Point3d
	inBlock   dvid.Point3d // offset of intersection within the block
	inRequest dvid.Point3d // offset of intersection within the request
	size      dvid.Point3d
}

// blockRegions returns the intersections of the subvolume with each block it touches.
func blockRegions(offset, size dvid.Point3d) []blockRegion {
	end := offset.Add(size).Sub(dvid.Point3d{1, 1, 1})
	begBlock := offset.Chunk(blockSize)
	endBlock := end.Chunk(blockSize)
	var regions []blockRegion
	for bz := begBlock[2]; bz <= endBlock[2]; bz++ {
		for by := begBlock[1]; by <= endBlock[1]; by++ {
			for bx := begBlock[0]; bx <= endBlock[0]; bx++ {
				bcoord := dvid.Point3d{bx, by, bz}
				blockBeg := dvid.Point3d{bx * blockSize[0], by * blockSize[1], bz * blockSize[2]}
				var lo, hi dvid.Point3d
				for i := 0; i < 3; i++ {
					lo[i] = max(offset[i], blockBeg[i])
					hi[i] = min(offset[i]+size[i], blockBeg[i]+blockSize[i])
				}
				regions = append(regions, blockRegion{
					bcoord:    bcoord,
					inBlock:   lo.Sub(blockBeg),
					inRequest: lo.Sub(offset),
					size:      hi.Sub(lo),
				})
			}
		}
	}
	return regions
}

// parseRawRequest parses the "0_1_2/<size>/<offset>" arguments of a raw request.
func parseRawRequest(args []string) (offset, size dvid.Point3d, err error) {
	if len(args) < 3 {
		err = fmt.Errorf("raw requests need dims, size and offset")
		return
	}
	if args[0] != "0_1_2" {
		err = fmt.Errorf("only 3d raw requests (0_1_2) are supported, got %q", args[0])
		return
	}
	if size, err = dvid.StringToPoint3d(args[1], "_"); err != nil {
		return
	}
	var n int64
	if n, err = size.VoxelCount(); err != nil {
		return
	}
	// label volumes are sent as 8 bytes per voxel
	if n*8 > dvid.MaxVoxels {
		err = fmt.Errorf("request for %d voxels exceeds server limit of %d bytes", n, dvid.MaxVoxels)
		return
	}
	if offset, err = dvid.StringToPoint3d(args[2], "_"); err != nil {
		return
	}
	if len(args) > 3 && args[3] != "" {
		err = fmt.Errorf("format %q not supported for 3d data", args[3])
	}
	return
}

func (s *Server) voxelsHandler(w http.ResponseWriter, r *http.Request, d *instance, endpoint string, args []string) {
	if endpoint != "raw" {
		BadRequest(w, r, "unrecognized API call %q for %s data %q", endpoint, d.TypeName, d.Name)
		return
	}
	offset, size, err := parseRawRequest(args)
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	done, ok := s.throttled(w, r)
	if !ok {
		return
	}
	defer done()

	switch r.Method {
	case http.MethodGet:
		s.getVoxels(w, r, d, offset, size)
	case http.MethodPost:
		s.putVoxels(w, r, d, offset, size)
	default:
		BadRequest(w, r, "method %s not supported for raw endpoint", r.Method)
	}
}

func (s *Server) getBlock(d *instance) func(dvid.Point3d) (*dvid.Gray3D, error) {
	ctx := d.dataContext()
	bsize := byteSize(blockSize, d.bytesPerVoxel())
	return func(bcoord dvid.Point3d) (*dvid.Gray3D, error) {
		stored, err := s.db.Get(ctx, storage.BlockTKey(bcoord))
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, nil
		}
		data, _, err := dvid.DeserializeData(stored, true)
		if err != nil {
			return nil, fmt.Errorf("block %s: %v", bcoord, err)
		}
		return dvid.Array3DFromBytes[uint8](bsize, data)
	}
}

func (s *Server) getVoxels(w http.ResponseWriter, r *http.Request, d *instance, offset, size dvid.Point3d) {
	query := r.URL.Query()
	if roi := query.Get("roi"); roi != "" {
		BadRequest(w, r, "ROI %q masking is not supported by the test server", roi)
		return
	}
	compression := query.Get("compression")
	switch compression {
	case "", "lz4", "gzip":
	default:
		BadRequest(w, r, "unknown compression type %q", compression)
		return
	}

	bpv := d.bytesPerVoxel()
	vol, err := dvid.NewArray3D[uint8](byteSize(size, bpv))
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	getBlock := s.getBlock(d)
	for _, region := range blockRegions(offset, size) {
		block, err := getBlock(region.bcoord)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if block == nil {
			continue
		}
		sub, err := block.SubArray(byteSize(region.inBlock, bpv), byteSize(region.size, bpv))
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if err := vol.Paste(sub, byteSize(region.inRequest, bpv)); err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
	}

	data := vol.Bytes()
	switch compression {
	case "lz4":
		data, err = dvid.CompressLZ4Block(data)
	case "gzip":
		data, err = dvid.CompressGzip(data)
	}
	if err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "unable to compress voxels: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) putVoxels(w http.ResponseWriter, r *http.Request, d *instance, offset, size dvid.Point3d) {
	if c := r.URL.Query().Get("compression"); c != "" {
		BadRequest(w, r, "compressed POST of voxels (%q) is not supported", strings.ToLower(c))
		return
	}
	bpv := d.bytesPerVoxel()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read voxels: %v", err)
		return
	}
	vol, err := dvid.Array3DFromBytes[uint8](byteSize(size, bpv), data)
	if err != nil {
		BadRequest(w, r, "bad POSTed voxels for %q: %v", d.Name, err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	getBlock := s.getBlock(d)
	bsize := byteSize(blockSize, bpv)
	regions := blockRegions(offset, size)
	batch := make([]storage.TKeyValue, 0, len(regions))
	for _, region := range regions {
		block, err := getBlock(region.bcoord)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if block == nil {
			if block, err = dvid.NewArray3D[uint8](bsize); err != nil {
				errorResponse(w, r, http.StatusInternalServerError, "%v", err)
				return
			}
		}
		sub, err := vol.SubArray(byteSize(region.inRequest, bpv), byteSize(region.size, bpv))
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if err := block.Paste(sub, byteSize(region.inBlock, bpv)); err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		serialization, err := dvid.SerializeData(block.Bytes(), blockCompression, dvid.CRC32)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		batch = append(batch, storage.TKeyValue{K: storage.BlockTKey(region.bcoord), V: serialization})
	}
	if err := s.db.PutRange(d.dataContext(), batch); err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "%v", err)
		return
	}
	dvid.Debugf("HTTP POST of %s voxels at %s into %q stored in %d blocks\n", size, offset, d.Name, len(batch))
}
