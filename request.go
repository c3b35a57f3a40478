package deskfs

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path string // Slash separated path relative to the root, i.e. "Documents/notes/todo.txt"
	Type NodeCreateRequestType
}

// NodeCreateRequestType valid types are FileNodeType "file", FolderNodeType "folder"
type NodeCreateRequestType string

const (
	FileNodeType   NodeCreateRequestType = "file"
	FolderNodeType NodeCreateRequestType = "folder"
)

type FileCreateRequest struct {
	NodeRequest
	Content []byte
}

type FolderCreateRequest struct {
	NodeRequest
}
