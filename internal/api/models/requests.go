package models

import (
	"time"

	"github.com/Project-Sylos/Mirage/internal/batch"
)

// ConflictBehaviorKey is the annotation clients use to pick a conflict
// behavior, in request bodies and as a query parameter
const ConflictBehaviorKey = "@microsoft.graph.conflictBehavior"

// CreateFolderRequest is the body of POST .../children
type CreateFolderRequest struct {
	Name             string    `json:"name"`
	Folder           *struct{} `json:"folder"`
	ConflictBehavior string    `json:"@microsoft.graph.conflictBehavior"`
}

// CreateUploadSessionRequest is the optional body of createUploadSession
type CreateUploadSessionRequest struct {
	Item struct {
		Name             string `json:"name"`
		ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"`
	} `json:"item"`
}

// UploadSessionResponse describes a pending upload session
type UploadSessionResponse struct {
	UploadURL          string    `json:"uploadUrl"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
	NextExpectedRanges []string  `json:"nextExpectedRanges"`
}

// ListItemRequest is the body of list item create and update calls
type ListItemRequest struct {
	Fields map[string]any `json:"fields"`
}

type BatchRequest struct {
	Requests []batch.Request `json:"requests"`
}

type BatchResponse struct {
	Responses []batch.Response `json:"responses"`
}

// Collection wraps list results
type Collection struct {
	Value any `json:"value"`
}

// ErrorResponse is the Graph error body
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
