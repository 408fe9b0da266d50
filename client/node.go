package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// DVID type names of the data instances a NodeService can create.
const (
	KeyValueType   = "keyvalue"
	Grayscale8Type = "uint8blk"
	LabelblkType   = "labelblk"
)

// NodeService makes requests against one version node of a DVID server.  It is cheap
// to create and safe for concurrent use.
type NodeService struct {
	conn *Connection
	uuid dvid.UUID

	// full node UUID used in value cache keys, resolved from a prefix on first use
	mu       sync.Mutex
	cacheFor dvid.UUID
}

// NewNodeService returns a service for the node with the given UUID, which may be any
// prefix the server can resolve uniquely.
func NewNodeService(conn *Connection, uuid string) (*NodeService, error) {
	if conn == nil {
		return nil, invalidArgf("nil connection")
	}
	u, err := dvid.StringToUUIDPrefix(uuid)
	if err != nil {
		return nil, invalidArgf("%v", err)
	}
	return &NodeService{conn: conn, uuid: u}, nil
}

// OpenNode connects to the server at address and returns a service for the given node.
func OpenNode(address, uuid string, opts ...Option) (*NodeService, error) {
	conn, err := NewConnection(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewNodeService(conn, uuid)
}

func (n *NodeService) UUID() dvid.UUID {
	return n.uuid
}

func (n *NodeService) Connection() *Connection {
	return n.conn
}

func (n *NodeService) nodeEndpoint(name dvid.InstanceName, parts ...string) string {
	elems := []string{"node", string(n.uuid), url.PathEscape(string(name))}
	return strings.Join(append(elems, parts...), "/")
}

func decodeJSONMap(data []byte, what string) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object: %v", ErrBadResponse, what, err)
	}
	return m, nil
}

// RepoInfo returns the JSON description of the repo that holds this node.
func (n *NodeService) RepoInfo(ctx context.Context) (map[string]interface{}, error) {
	data, err := n.conn.Do(ctx, http.MethodGet, "repo/"+string(n.uuid)+"/info", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSONMap(data, "repo info")
}

// TypeInfo returns the JSON description of a data instance.
func (n *NodeService) TypeInfo(ctx context.Context, name dvid.InstanceName) (map[string]interface{}, error) {
	data, err := n.conn.Do(ctx, http.MethodGet, n.nodeEndpoint(name, "info"), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSONMap(data, "instance info")
}

// InstanceInfo is the subset of a data instance's info used by the client.
type InstanceInfo struct {
	Base struct {
		TypeName  string
		TypeURL   string
		Name      dvid.InstanceName
		RepoUUID  dvid.UUID
		Versioned bool
	}
	Extended json.RawMessage
}

// Info returns the decoded info of a data instance.
func (n *NodeService) Info(ctx context.Context, name dvid.InstanceName) (*InstanceInfo, error) {
	data, err := n.conn.Do(ctx, http.MethodGet, n.nodeEndpoint(name, "info"), nil, nil)
	if err != nil {
		return nil, err
	}
	info := new(InstanceInfo)
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("%w: instance %q info: %v", ErrBadResponse, name, err)
	}
	return info, nil
}

// CustomRequest sends a request to an endpoint relative to this node, e.g.,
// "mykv/keyrange/a/z", and returns the raw response body.
func (n *NodeService) CustomRequest(ctx context.Context, endpoint, method string, body []byte) ([]byte, error) {
	endpoint = strings.TrimPrefix(endpoint, "/")
	var query url.Values
	if i := strings.Index(endpoint, "?"); i >= 0 {
		var err error
		if query, err = url.ParseQuery(endpoint[i+1:]); err != nil {
			return nil, invalidArgf("bad query string in %q: %v", endpoint, err)
		}
		endpoint = endpoint[:i]
	}
	return n.conn.Do(ctx, strings.ToUpper(method), "node/"+string(n.uuid)+"/"+endpoint, query, body)
}

// CreateKeyValue creates a keyvalue instance.  It returns false if an instance of the
// same name and type already exists.
func (n *NodeService) CreateKeyValue(ctx context.Context, name dvid.InstanceName) (bool, error) {
	return n.createInstance(ctx, KeyValueType, name, dvid.NewConfig())
}

// CreateGrayscale8 creates an 8-bit grayscale (uint8blk) instance.  It returns false if
// an instance of the same name and type already exists.
func (n *NodeService) CreateGrayscale8(ctx context.Context, name dvid.InstanceName) (bool, error) {
	return n.createInstance(ctx, Grayscale8Type, name, dvid.NewConfig())
}

// CreateLabelblk creates a 64-bit label (labelblk) instance.  It returns false if an
// instance of the same name and type already exists.
func (n *NodeService) CreateLabelblk(ctx context.Context, name dvid.InstanceName) (bool, error) {
	return n.createInstance(ctx, LabelblkType, name, dvid.NewConfig())
}

// CreateInstance creates an instance of any type with additional settings.
func (n *NodeService) CreateInstance(ctx context.Context, typename string, name dvid.InstanceName, config dvid.Config) (bool, error) {
	return n.createInstance(ctx, typename, name, config)
}

func (n *NodeService) createInstance(ctx context.Context, typename string, name dvid.InstanceName, config dvid.Config) (bool, error) {
	if name == "" {
		return false, invalidArgf("data instance name is required")
	}
	if typename == "" {
		return false, invalidArgf("type name is required for instance %q", name)
	}
	info, err := n.Info(ctx, name)
	switch {
	case err == nil:
		if info.Base.TypeName != typename {
			return false, fmt.Errorf("instance %q already exists with type %q, not %q", name, info.Base.TypeName, typename)
		}
		dvid.Debugf("Instance %q of type %q already exists in node %s\n", name, typename, n.uuid)
		return false, nil
	case !isMissingInstance(err):
		return false, err
	}

	config.Set("typename", typename)
	config.Set("dataname", string(name))
	body, err := json.Marshal(config)
	if err != nil {
		return false, err
	}
	if _, err := n.conn.doNoRetry(ctx, http.MethodPost, "repo/"+string(n.uuid)+"/instance", nil, body); err != nil {
		return false, fmt.Errorf("unable to create %s instance %q: %w", typename, name, err)
	}
	dvid.Infof("Created %s instance %q in node %s\n", typename, name, n.uuid)
	return true, nil
}

// cacheUUID returns the full UUID of the node for keying the connection's value
// cache.  It returns false if caching is disabled or a UUID prefix could not be
// resolved.
func (n *NodeService) cacheUUID(ctx context.Context) (dvid.UUID, bool) {
	if n.conn.cache == nil {
		return "", false
	}
	if len(n.uuid) == 32 {
		return n.uuid, true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cacheFor != "" {
		return n.cacheFor, true
	}
	full, err := n.resolveUUID(ctx)
	if err != nil {
		dvid.Debugf("Unable to resolve node %s for value cache: %v\n", n.uuid, err)
		return "", false
	}
	n.cacheFor = full
	return full, true
}

// resolveUUID finds the full UUID of the node from the DAG in its repo info.
func (n *NodeService) resolveUUID(ctx context.Context) (dvid.UUID, error) {
	data, err := n.conn.Do(ctx, http.MethodGet, "repo/"+string(n.uuid)+"/info", nil, nil)
	if err != nil {
		return "", err
	}
	var info struct {
		DAG struct {
			Nodes map[string]struct {
				UUID dvid.UUID
			}
		}
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("%w: repo info: %v", ErrBadResponse, err)
	}
	var found dvid.UUID
	for key, node := range info.DAG.Nodes {
		uuid := node.UUID
		if uuid == "" {
			uuid = dvid.UUID(key)
		}
		if !uuid.Matches(n.uuid) {
			continue
		}
		if found != "" && found != uuid {
			return "", fmt.Errorf("UUID prefix %s matches more than one node", n.uuid)
		}
		found = uuid
	}
	if found == "" {
		return "", fmt.Errorf("%w: no node in repo DAG matches %s", ErrBadResponse, n.uuid)
	}
	return found, nil
}

// DVID answers requests for unknown instances with 400.
func isMissingInstance(err error) bool {
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.StatusCode == http.StatusBadRequest || respErr.StatusCode == http.StatusNotFound
}
