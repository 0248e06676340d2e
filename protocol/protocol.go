// Package protocol defines the JSON-line message types exchanged between
// a client and the werkbank server over its Unix socket.
package protocol

import "time"

// Op identifies a request operation.
type Op string

const (
	OpReadFile  Op = "read_file"
	OpWriteFile Op = "write_file"
	OpListDir   Op = "list_dir"
	OpExec      Op = "exec"
)

// Request is the envelope sent client → server. ID and Op are mandatory;
// the remaining fields are per-operation and validated by the handlers,
// not by the decoder.
type Request struct {
	ID string `json:"id"`
	Op Op     `json:"op"`

	// read_file / write_file / list_dir fields. Content is a pointer so
	// that writing an empty file is distinguishable from an absent field.
	Path    string  `json:"path,omitempty"`
	Content *string `json:"content,omitempty"`

	// Exec fields. Stdin is part of the schema but no handler consumes
	// it yet.
	Command string `json:"command,omitempty"`
	Stdin   string `json:"stdin,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // whole seconds
}

// Status tags a response as success or failure.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the envelope sent server → client. Exactly one of Data or
// Error is meaningful, selected by Status. ExitCode is set only by the
// exec operation and is always present there, including the timeout
// sentinel.
type Response struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Data     string `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// TimeoutExitCode is reported when a command was forcibly terminated
// after exceeding its timeout.
const TimeoutExitCode = 124

// MaxOutputBytes is the per-stream cap on captured exec output.
const MaxOutputBytes = 10000

// ReadChunkSize is the read granularity used when draining exec output.
const ReadChunkSize = 4096

// MaxRecordBytes bounds a single request or response line on the wire.
const MaxRecordBytes = 10 * 1024 * 1024 // 10 MB

// DefaultExecTimeout applies when a request omits the timeout field.
const DefaultExecTimeout = 60 * time.Second

// GracePeriod is how long a timed-out command gets between SIGTERM and
// SIGKILL.
const GracePeriod = 500 * time.Millisecond

// PlaceholderID identifies responses to records whose original id could
// not be recovered.
const PlaceholderID = "unknown"
