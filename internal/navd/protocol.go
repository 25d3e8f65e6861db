package navd

import (
	"encoding/json"

	"codenav/internal/core/regex"
	"codenav/internal/model"
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeNotFound       = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
	// codeCancelled is returned when a removal was not confirmed.
	codeCancelled = -32001
	// codeNoDatabase is returned when the workspace has no database yet.
	codeNoDatabase = -32002
)

type WorkspaceAddParams struct {
	Root string `json:"root"`
	// Storage overrides the configured storage mode for this workspace.
	Storage string `json:"storage,omitempty"`
}

type QueryParams struct {
	WorkspaceID string   `json:"workspace_id"`
	Kind        string   `json:"kind"`
	Pattern     string   `json:"pattern,omitempty"`
	Target      string   `json:"target,omitempty"`
	Files       []string `json:"files,omitempty"`
	Line        int      `json:"line,omitempty"`
	File        string   `json:"file,omitempty"`
	IgnoreCase  bool     `json:"ignore_case,omitempty"`
	Literal     bool     `json:"literal,omitempty"`
	PathStyle   string   `json:"path_style,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Result      string   `json:"result,omitempty"`
	AutoJump    bool     `json:"auto_jump,omitempty"`
	Append      bool     `json:"append,omitempty"`
}

type QueryResult struct {
	Locations  []model.Location `json:"locations"`
	Jump       *model.Location  `json:"jump,omitempty"`
	Highlights []regex.Pattern  `json:"highlights,omitempty"`
}

type UpdateParams struct {
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path,omitempty"`
	Single      bool   `json:"single,omitempty"`
	Auto        bool   `json:"auto,omitempty"`
	// Wait blocks the call until the update has run.
	Wait bool `json:"wait,omitempty"`
}

type UpdateResult struct {
	Pending int `json:"pending"`
}

type RemoveParams struct {
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path,omitempty"`
	Confirm     bool   `json:"confirm"`
}

type TranslateParams struct {
	Pattern string `json:"pattern"`
	Perl    bool   `json:"perl,omitempty"`
}

type HighlightsParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type WatchStartParams struct {
	WorkspaceID string `json:"workspace_id"`
	DebounceMS  int    `json:"debounce_ms,omitempty"`
}

type WatchStopParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type WatchStatusParams struct {
	WorkspaceID string `json:"workspace_id"`
}

type WatchStatusResult struct {
	Running   bool   `json:"running"`
	Root      string `json:"root,omitempty"`
	Scheduled int64  `json:"scheduled,omitempty"`
}
