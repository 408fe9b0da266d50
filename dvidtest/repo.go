package dvidtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/storage"
)

// Supported DVID type names.
const (
	KeyValueType = "keyvalue"
	Uint8Type    = "uint8blk"
	LabelType    = "labelblk"
)

// typeURLs lists the supported types with the URLs DVID reports for them.
var typeURLs = map[string]string{
	KeyValueType: "github.com/janelia-flyem/dvid/datatype/keyvalue",
	Uint8Type:    "github.com/janelia-flyem/dvid/datatype/imageblk/uint8.go",
	LabelType:    "github.com/janelia-flyem/dvid/datatype/labelblk",
}

// repo holds a single version node and its data instances.
type repo struct {
	Root        dvid.UUID
	Alias       string
	Description string
	Created     time.Time
	Updated     time.Time
	Instances   map[dvid.InstanceName]*instance
}

// instance is a named, typed data instance.
type instance struct {
	TypeName string
	Name     dvid.InstanceName
	RepoUUID dvid.UUID
	ID       storage.InstanceID
	Settings map[string]interface{}

	// serializes read-modify-write of voxel blocks
	mu sync.Mutex
}

func (d *instance) dataContext() *storage.DataContext {
	return storage.NewDataContext(d.Name, d.ID)
}

func (d *instance) isVoxels() bool {
	return d.TypeName == Uint8Type || d.TypeName == LabelType
}

func (d *instance) bytesPerVoxel() int32 {
	if d.TypeName == LabelType {
		return 8
	}
	return 1
}

// compression returns the format used to serialize the instance's stored values.
func (d *instance) compression() dvid.Compression {
	if d.isVoxels() {
		return blockCompression
	}
	return valueCompression
}

func (d *instance) info() map[string]interface{} {
	base := map[string]interface{}{
		"TypeName":    d.TypeName,
		"TypeURL":     typeURLs[d.TypeName],
		"TypeVersion": "0.1",
		"Name":        d.Name,
		"RepoUUID":    d.RepoUUID,
		"Compression": d.compression().String(),
		"Checksum":    dvid.CRC32.String(),
		"Syncs":       []string{},
		"Versioned":   true,
	}
	var extended interface{}
	if d.isVoxels() {
		dataType := "uint8"
		if d.TypeName == LabelType {
			dataType = "uint64"
		}
		extended = map[string]interface{}{
			"Values":     []map[string]string{{"DataType": dataType, "Label": d.TypeName}},
			"BlockSize":  blockSize,
			"VoxelSize":  [3]float32{8, 8, 8},
			"VoxelUnits": [3]string{"nanometers", "nanometers", "nanometers"},
		}
	} else {
		extended = map[string]interface{}{}
	}
	return map[string]interface{}{"Base": base, "Extended": extended}
}

func (r *repo) info() map[string]interface{} {
	instances := make(map[dvid.InstanceName]interface{}, len(r.Instances))
	for name, d := range r.Instances {
		instances[name] = d.info()
	}
	return map[string]interface{}{
		"Root":          r.Root,
		"Alias":         r.Alias,
		"Description":   r.Description,
		"Created":       r.Created,
		"Updated":       r.Updated,
		"DataInstances": instances,
		"DAG": map[string]interface{}{
			"Root": r.Root,
			"Nodes": map[dvid.UUID]interface{}{
				r.Root: map[string]interface{}{"UUID": r.Root, "Locked": false, "Parents": []int{}, "Children": []int{}},
			},
		},
	}
}

const repoMetadataPrefix = "repo:"

// saveRepo persists the repo description.  Caller must hold s.mu.
func (s *Server) saveRepo(r *repo) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	tk := storage.TKey(repoMetadataPrefix + string(r.Root))
	return s.db.Put(storage.NewMetadataContext(), tk, data)
}

func (s *Server) loadMetadata() error {
	kvs, err := s.db.GetRange(storage.NewMetadataContext(), storage.TKey(repoMetadataPrefix), nil)
	if err != nil {
		return fmt.Errorf("unable to read repo metadata: %v", err)
	}
	for _, kv := range kvs {
		if !strings.HasPrefix(string(kv.K), repoMetadataPrefix) {
			continue
		}
		r := new(repo)
		if err := json.Unmarshal(kv.V, r); err != nil {
			return fmt.Errorf("bad repo metadata for key %q: %v", kv.K, err)
		}
		if r.Instances == nil {
			r.Instances = make(map[dvid.InstanceName]*instance)
		}
		for _, d := range r.Instances {
			if d.ID >= s.nextID {
				s.nextID = d.ID + 1
			}
		}
		s.repos[r.Root] = r
	}
	if len(s.repos) != 0 {
		dvid.Infof("Loaded %d repos from %s\n", len(s.repos), s.db)
	}
	return nil
}

// resolveUUID finds the repo whose node UUID is uniquely prefixed by uuidStr.
// Caller must hold s.mu.
func (s *Server) resolveUUID(uuidStr string) (*repo, error) {
	prefix, err := dvid.StringToUUIDPrefix(uuidStr)
	if err != nil {
		return nil, err
	}
	var found *repo
	for uuid, r := range s.repos {
		if !uuid.Matches(prefix) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("UUID prefix %q matches more than one node", uuidStr)
		}
		found = r
	}
	if found == nil {
		return nil, fmt.Errorf("no node with UUID %q", uuidStr)
	}
	return found, nil
}

func (s *Server) reposPostHandler(w http.ResponseWriter, r *http.Request) {
	var config struct {
		Alias       string `json:"alias"`
		Description string `json:"description"`
	}
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			BadRequest(w, r, "unable to read body of repo creation: %v", err)
			return
		}
		if len(data) != 0 {
			if err := json.Unmarshal(data, &config); err != nil {
				BadRequest(w, r, "error decoding POSTed JSON config for new repo: %v", err)
				return
			}
		}
	}

	now := time.Now()
	newRepo := &repo{
		Root:        dvid.NewUUID(),
		Alias:       config.Alias,
		Description: config.Description,
		Created:     now,
		Updated:     now,
		Instances:   make(map[dvid.InstanceName]*instance),
	}
	s.mu.Lock()
	s.repos[newRepo.Root] = newRepo
	err := s.saveRepo(newRepo)
	s.mu.Unlock()
	if err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "unable to save repo: %v", err)
		return
	}
	dvid.Debugf("Created repo %q with root %s\n", newRepo.Alias, newRepo.Root)
	writeJSON(w, r, map[string]string{"root": string(newRepo.Root)})
}

func (s *Server) repoInfoHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, err := s.resolveUUID(c.URLParams["uuid"])
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	writeJSON(w, r, rp.info())
}

func (s *Server) repoNewDataHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	config := dvid.NewConfig()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read instance creation body: %v", err)
		return
	}
	if err := config.UnmarshalJSON(data); err != nil {
		BadRequest(w, r, "error decoding POSTed JSON config for new data: %v", err)
		return
	}
	typename, _, err := config.GetString("typename")
	if err != nil || typename == "" {
		BadRequest(w, r, "POST on repo endpoint requires specification of valid 'typename'")
		return
	}
	dataname, _, err := config.GetString("dataname")
	if err != nil || dataname == "" {
		BadRequest(w, r, "POST on repo endpoint requires specification of valid 'dataname'")
		return
	}
	if _, supported := typeURLs[typename]; !supported {
		BadRequest(w, r, "no data type with name %q", typename)
		return
	}
	settings := config.GetAll()
	delete(settings, "typename")
	delete(settings, "dataname")

	s.mu.Lock()
	defer s.mu.Unlock()
	rp, err := s.resolveUUID(c.URLParams["uuid"])
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	name := dvid.InstanceName(dataname)
	if _, found := rp.Instances[name]; found {
		BadRequest(w, r, "data instance %q already exists in repo %s", name, rp.Root)
		return
	}
	rp.Instances[name] = &instance{
		TypeName: typename,
		Name:     name,
		RepoUUID: rp.Root,
		ID:       s.nextID,
		Settings: settings,
	}
	s.nextID++
	rp.Updated = time.Now()
	if err := s.saveRepo(rp); err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "unable to save repo: %v", err)
		return
	}
	dvid.Debugf("Created %s instance %q in repo %s\n", typename, name, rp.Root)
	writeJSON(w, r, map[string]string{"result": fmt.Sprintf("Added %q [%s] to node %s", name, typename, rp.Root)})
}

// getInstance returns the named instance in the node.
func (s *Server) getInstance(uuidStr string, name dvid.InstanceName) (*instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, err := s.resolveUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	d, found := rp.Instances[name]
	if !found {
		return nil, fmt.Errorf("data %q not found in node %s", name, rp.Root)
	}
	return d, nil
}

// nodeHandler dispatches /api/node/<uuid>/<dataname>/<endpoint>/... requests.
func (s *Server) nodeHandler(w http.ResponseWriter, r *http.Request) {
	// split the escaped path so keys may contain escaped slashes
	escaped := strings.TrimPrefix(r.URL.EscapedPath(), WebAPIPath+"node/")
	parts := strings.Split(escaped, "/")
	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err != nil {
			BadRequest(w, r, "bad URL path element %q: %v", part, err)
			return
		}
		parts[i] = unescaped
	}
	if len(parts) < 3 || parts[2] == "" {
		BadRequest(w, r, "incomplete API specification")
		return
	}
	d, err := s.getInstance(parts[0], dvid.InstanceName(parts[1]))
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	endpoint, args := parts[2], parts[3:]
	if endpoint == "info" {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			BadRequest(w, r, "only GET is supported for info")
			return
		}
		writeJSON(w, r, d.info())
		return
	}

	switch d.TypeName {
	case KeyValueType:
		s.keyvalueHandler(w, r, d, endpoint, args)
	case Uint8Type, LabelType:
		s.voxelsHandler(w, r, d, endpoint, args)
	default:
		BadRequest(w, r, "data %q has unsupported type %q", d.Name, d.TypeName)
	}
}
