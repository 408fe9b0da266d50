package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/blang/semver"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// ServerService makes server-level requests that don't need a version node.
type ServerService struct {
	conn *Connection
}

func NewServerService(conn *Connection) *ServerService {
	return &ServerService{conn: conn}
}

// ServerInfo returns the decoded JSON of /api/server/info.
func (s *ServerService) ServerInfo(ctx context.Context) (map[string]interface{}, error) {
	data, err := s.conn.Do(ctx, http.MethodGet, "server/info", nil, nil)
	if err != nil {
		return nil, err
	}
	var info map[string]interface{}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: server info is not JSON: %v", ErrBadResponse, err)
	}
	return info, nil
}

// Version returns the semantic version of the DVID server.
func (s *ServerService) Version(ctx context.Context) (semver.Version, error) {
	info, err := s.ServerInfo(ctx)
	if err != nil {
		return semver.Version{}, err
	}
	str, ok := info["DVID Version"].(string)
	if !ok {
		return semver.Version{}, fmt.Errorf("%w: server info has no \"DVID Version\"", ErrBadResponse)
	}
	return ParseVersion(str)
}

// ParseVersion parses a DVID version string like "v1.0.2" or "1.0.2-21-g3c7a".
func ParseVersion(str string) (semver.Version, error) {
	str = strings.TrimPrefix(strings.TrimSpace(str), "v")
	v, err := semver.ParseTolerant(str)
	if err != nil {
		return semver.Version{}, fmt.Errorf("%w: bad DVID version %q: %v", ErrBadResponse, str, err)
	}
	return v, nil
}

type newRepoRequest struct {
	Alias       string `json:"alias"`
	Description string `json:"description"`
}

// CreateNewRepo creates a repo and returns the UUID of its root node.
func (s *ServerService) CreateNewRepo(ctx context.Context, alias, description string) (dvid.UUID, error) {
	body, err := json.Marshal(newRepoRequest{Alias: alias, Description: description})
	if err != nil {
		return dvid.NilUUID, err
	}
	// a retried POST could create a second repo
	data, err := s.conn.doNoRetry(ctx, http.MethodPost, "repos", nil, body)
	if err != nil {
		return dvid.NilUUID, err
	}
	var resp struct {
		Root string `json:"root"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return dvid.NilUUID, fmt.Errorf("%w: repo creation returned %q: %v", ErrBadResponse, string(data), err)
	}
	uuid, err := dvid.StringToUUID(resp.Root)
	if err != nil {
		return dvid.NilUUID, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	dvid.Infof("Created repo %q with root %s on %s\n", alias, uuid, s.conn.Address())
	return uuid, nil
}
