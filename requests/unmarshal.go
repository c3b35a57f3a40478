package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Batch holds the create requests decoded from one nodes definition file in file order
type Batch struct {
	Folders []*deskfs.FolderCreateRequest
	Files   []*deskfs.FileCreateRequest
}

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (deskfs.NodeCreateRequestType, error) {
	var meta struct {
		Type deskfs.NodeCreateRequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling with content
func UnmarshalFileRequest(data []byte) (*deskfs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	if node.Path == "" {
		return nil, errors.New("file request requires a path")
	}

	var content []byte
	if dto.Content != nil {
		content = []byte(*dto.Content)
	}
	return &deskfs.FileCreateRequest{
		NodeRequest: node,
		Content:     content,
	}, nil
}

// UnmarshalFolderRequest handles explicit folder unmarshaling (no content)
func UnmarshalFolderRequest(data []byte) (*deskfs.FolderCreateRequest, error) {
	var dto FolderRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	return &deskfs.FolderCreateRequest{NodeRequest: node}, nil
}

// SplitDefinitions breaks a nodes definition document into one raw JSON
// message per node. Files ending in .yaml or .yml are read as a YAML
// sequence, anything else as a JSON array.
func SplitDefinitions(path string, data []byte) ([]json.RawMessage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse nodes JSON: %w", err)
		}
		return raw, nil
	}

	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse nodes YAML: %w", err)
	}
	raw := make([]json.RawMessage, 0, len(docs))
	for i, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML node %d: %w", i, err)
		}
		raw = append(raw, b)
	}
	return raw, nil
}

// Decode turns raw node definitions into a Batch. Definitions that fail to
// decode or have an unknown type are logged and skipped.
func Decode(rawNodes []json.RawMessage) *Batch {
	logger := util.GetLogger("Requests.Decode")
	b := &Batch{}

	for _, rawNode := range rawNodes {
		// Determine the node type
		nodeType, err := GetNodeType(rawNode)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get node type")
			continue
		}

		switch nodeType {
		case deskfs.FileNodeType:
			fileReq, err := UnmarshalFileRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to unmarshal file request")
				continue
			}
			b.Files = append(b.Files, fileReq)
			logger.Debug().Str("path", fileReq.Path).Msg("Processed file request")

		case deskfs.FolderNodeType:
			folderReq, err := UnmarshalFolderRequest(rawNode)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to unmarshal folder request")
				continue
			}
			b.Folders = append(b.Folders, folderReq)
			logger.Debug().Str("path", folderReq.Path).Msg("Processed folder request")

		default:
			logger.Warn().Str("type", string(nodeType)).Msg("Unknown node type")
		}
	}
	return b
}

// LoadFile reads and decodes a nodes definition file
func LoadFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes file: %w", err)
	}
	raw, err := SplitDefinitions(path, data)
	if err != nil {
		return nil, err
	}
	return Decode(raw), nil
}

// Conversion logic with defaults in the unmarshaling layer
func convertNodeDTO(dto NodeRequestDTO) (deskfs.NodeRequest, error) {
	p := strings.Trim(dto.Path, "/")
	if strings.Contains(p, "//") {
		return deskfs.NodeRequest{}, fmt.Errorf("invalid path %q", dto.Path)
	}
	return deskfs.NodeRequest{
		Path: p,
		Type: dto.Type,
	}, nil
}
