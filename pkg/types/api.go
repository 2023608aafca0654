package types

// Model describes one model known to the upstream daemon, as returned by
// its tags listing.
type Model struct {
	// Model name including tag.
	// example: llama3.2:latest
	Name string `json:"name" example:"llama3.2:latest"`
	// Size on disk in bytes.
	// example: 2019393189
	Size int64 `json:"size" example:"2019393189"`
	// Content digest of the model.
	// example: sha256:a80c4f17acd5
	Digest string `json:"digest,omitempty" example:"sha256:a80c4f17acd5"`
	// Last modification time reported by the daemon (RFC3339).
	// example: 2024-05-04T14:56:49Z
	ModifiedAt string `json:"modified_at,omitempty" example:"2024-05-04T14:56:49Z"`
	// Daemon-specific detail block (family, quantization, parameter size).
	Details map[string]any `json:"details,omitempty"`
}

// ModelsResponse wraps the list returned by GET /api/models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// RunningModel describes one loaded instance from the daemon's ps listing.
type RunningModel struct {
	// Model name including tag.
	// example: llama3.2:latest
	Name string `json:"name" example:"llama3.2:latest"`
	// Resident size in bytes.
	// example: 3327056896
	Size int64 `json:"size" example:"3327056896"`
	// VRAM-resident portion in bytes.
	// example: 3327056896
	SizeVRAM int64 `json:"size_vram,omitempty" example:"3327056896"`
	// When the instance will be unloaded (RFC3339).
	// example: 2024-05-04T15:01:49Z
	ExpiresAt string `json:"expires_at,omitempty" example:"2024-05-04T15:01:49Z"`
	// Daemon-specific detail block.
	Details map[string]any `json:"details,omitempty"`
}

// PsResponse wraps the list returned by GET /api/ps.
type PsResponse struct {
	Models []RunningModel `json:"models"`
}

// PullRequest is the body of POST /api/pull.
type PullRequest struct {
	// Model to pull, required.
	// example: llama3.2:latest
	Model string `json:"model" example:"llama3.2:latest"`
}

// UpdateRequest is the body of POST /api/update-model. The field name
// differs from PullRequest for compatibility with existing console clients.
type UpdateRequest struct {
	// Model to update, required.
	// example: llama3.2:latest
	ModelName string `json:"modelName" example:"llama3.2:latest"`
}

// ShowRequest is the body of POST /api/show.
type ShowRequest struct {
	// Model to describe, required.
	// example: llama3.2:latest
	Model string `json:"model" example:"llama3.2:latest"`
}

// ModelsRequest names the targets of a bulk operation
// (DELETE /api/models, POST /api/models/run, POST /api/models/stop).
type ModelsRequest struct {
	// Target model names, at least one required.
	// example: ["llama3.2:latest","phi3:mini"]
	Models []string `json:"models" example:"[\"llama3.2:latest\",\"phi3:mini\"]"`
}

// BulkFailure reports one failed target of a bulk operation.
type BulkFailure struct {
	// Model the sub-request targeted.
	// example: phi3:mini
	Model string `json:"model" example:"phi3:mini"`
	// Error message for this target.
	// example: model not found
	Error string `json:"error" example:"model not found"`
}

// BulkResult aggregates a parallel bulk operation. Partial failure is not
// an abort: succeeded targets stay succeeded and failures are listed
// per-item.
type BulkResult struct {
	// True unless every target failed.
	Success bool `json:"success"`
	// Number of targets that succeeded.
	// example: 1
	Completed int `json:"completed"`
	// Per-target failures, empty when all succeeded.
	Failed []BulkFailure `json:"failed,omitempty"`
}

// DeleteModelsResponse is the body returned by DELETE /api/models.
type DeleteModelsResponse struct {
	Success bool `json:"success"`
	// Number of models deleted.
	// example: 1
	Deleted int           `json:"deleted"`
	Failed  []BulkFailure `json:"failed,omitempty"`
}

// SetEndpointRequest is the body of POST /api/set-endpoint.
type SetEndpointRequest struct {
	// New default upstream daemon base URL.
	// example: http://127.0.0.1:11434
	Endpoint string `json:"endpoint" example:"http://127.0.0.1:11434"`
}

// SetEndpointResponse confirms the applied default endpoint.
type SetEndpointResponse struct {
	Status string `json:"status" example:"ok"`
	// example: http://127.0.0.1:11434
	Endpoint string `json:"endpoint" example:"http://127.0.0.1:11434"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model is required
	Error string `json:"error" example:"model is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
