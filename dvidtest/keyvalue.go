package dvidtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/proto"
	"github.com/janelia-flyem/libdvid-go/storage"
)

func keyTKey(key string) storage.TKey {
	return storage.NewTKey(storage.TKeyKeyValue, []byte(key))
}

func keyFromTKey(tk storage.TKey) (string, error) {
	b, err := tk.ClassBytes(storage.TKeyKeyValue)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Server) getValue(d *instance, key string) ([]byte, bool, error) {
	stored, err := s.db.Get(d.dataContext(), keyTKey(key))
	if err != nil || stored == nil {
		return nil, false, err
	}
	value, _, err := dvid.DeserializeData(stored, true)
	if err != nil {
		return nil, false, fmt.Errorf("unable to deserialize value for key %q: %v", key, err)
	}
	return value, true, nil
}

// valueCompression is the format of stored keyvalue values.
const valueCompression = dvid.Snappy

func serializeValue(value []byte) ([]byte, error) {
	return dvid.SerializeData(value, valueCompression, dvid.CRC32)
}

func (s *Server) putValue(d *instance, key string, value []byte) error {
	serialization, err := serializeValue(value)
	if err != nil {
		return err
	}
	return s.db.Put(d.dataContext(), keyTKey(key), serialization)
}

func (s *Server) keysInRange(d *instance, begKey, endKey string) ([]string, error) {
	var end storage.TKey
	if endKey != "" {
		end = keyTKey(endKey)
	}
	tkeys, err := s.db.KeysInRange(d.dataContext(), keyTKey(begKey), end)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(tkeys))
	for _, tk := range tkeys {
		key, err := keyFromTKey(tk)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// keyvalueHandler handles the keyvalue endpoints of a data instance.
func (s *Server) keyvalueHandler(w http.ResponseWriter, r *http.Request, d *instance, endpoint string, args []string) {
	switch endpoint {
	case "keys":
		if r.Method != http.MethodGet {
			BadRequest(w, r, "only GET is supported for keys")
			return
		}
		keys, err := s.keysInRange(d, "", "")
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, r, keys)

	case "keyrange":
		if len(args) < 2 {
			BadRequest(w, r, "expect beginning and end keys to follow 'keyrange' endpoint")
			return
		}
		keys, err := s.keysInRange(d, args[0], args[1])
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, r, keys)

	case "key":
		if len(args) < 1 || args[0] == "" {
			BadRequest(w, r, "missing key name after 'key' endpoint")
			return
		}
		key := strings.Join(args, "/")
		s.keyHandler(w, r, d, key)

	case "keyvalues":
		switch r.Method {
		case http.MethodGet:
			s.getKeyValues(w, r, d)
		case http.MethodPost:
			s.postKeyValues(w, r, d)
		default:
			BadRequest(w, r, "only GET or POST is supported for keyvalues")
		}

	default:
		BadRequest(w, r, "unrecognized API call %q for keyvalue data %q", endpoint, d.Name)
	}
}

func (s *Server) keyHandler(w http.ResponseWriter, r *http.Request, d *instance, key string) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		value, found, err := s.getValue(d, key)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if !found {
			http.Error(w, fmt.Sprintf("Key %q not found", key), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodGet {
			w.Write(value)
		}

	case http.MethodPost, http.MethodPut:
		value, err := io.ReadAll(r.Body)
		if err != nil {
			BadRequest(w, r, "unable to read value for key %q: %v", key, err)
			return
		}
		if err := s.putValue(d, key, value); err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		dvid.Debugf("HTTP %s of key %q (%d bytes) into %q\n", r.Method, key, len(value), d.Name)

	case http.MethodDelete:
		if err := s.db.Delete(d.dataContext(), keyTKey(key)); err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}

	default:
		BadRequest(w, r, "method %s not supported for key endpoint", r.Method)
	}
}

// getKeyValues reads a protobuf Keys request body and returns the found key-value
// pairs as protobuf KeyValues.  A JSON list of keys is accepted with content type
// "application/json".
func (s *Server) getKeyValues(w http.ResponseWriter, r *http.Request, d *instance) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read keys: %v", err)
		return
	}
	var keys []string
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(data, &keys); err != nil {
			BadRequest(w, r, "expected JSON list of keys: %v", err)
			return
		}
	} else {
		var req proto.Keys
		if err := req.Unmarshal(data); err != nil {
			BadRequest(w, r, "unable to parse Keys protobuf: %v", err)
			return
		}
		keys = req.Keys
	}

	var resp proto.KeyValues
	for _, key := range keys {
		value, found, err := s.getValue(d, key)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		if found {
			resp.Kvs = append(resp.Kvs, &proto.KeyValue{Key: key, Value: value})
		}
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(resp.Marshal())
}

func (s *Server) postKeyValues(w http.ResponseWriter, r *http.Request, d *instance) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read keyvalues: %v", err)
		return
	}
	var kvs proto.KeyValues
	if err := kvs.Unmarshal(data); err != nil {
		BadRequest(w, r, "unable to parse KeyValues protobuf: %v", err)
		return
	}
	batch := make([]storage.TKeyValue, 0, len(kvs.Kvs))
	for _, kv := range kvs.Kvs {
		if kv.Key == "" {
			BadRequest(w, r, "empty key in POSTed keyvalues")
			return
		}
		serialization, err := serializeValue(kv.Value)
		if err != nil {
			errorResponse(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		batch = append(batch, storage.TKeyValue{K: keyTKey(kv.Key), V: serialization})
	}
	if err := s.db.PutRange(d.dataContext(), batch); err != nil {
		errorResponse(w, r, http.StatusInternalServerError, "%v", err)
		return
	}
	dvid.Debugf("HTTP POST keyvalues on %d keys into %q\n", len(batch), d.Name)
}
