package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonathan/esg-extractor/internal/pipeline"
)

// Event names on the batch stream.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
	EventComplete = "complete"
)

// ProgressPayload is the data of a progress event.
type ProgressPayload struct {
	Step     string   `json:"step"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	RunID    string   `json:"run_id,omitempty"`
	Document string   `json:"document,omitempty"`
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Status   string   `json:"status,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// CompletePayload is the data of the final event of a batch.
type CompletePayload struct {
	RunID        string `json:"run_id"`
	Complete     int    `json:"complete"`
	Insufficient int    `json:"insufficient"`
	Failed       int    `json:"failed"`
	Status       string `json:"status"`
}

func progressPayload(ev pipeline.ProgressEvent) ProgressPayload {
	p := ProgressPayload{
		Step:     ev.Step,
		Category: ev.Category,
		Message:  ev.Message,
		RunID:    ev.RunID,
		Document: ev.Document,
		Index:    ev.Index,
		Total:    ev.Total,
	}
	switch c := ev.Content.(type) {
	case string:
		p.Status = c
	case []string:
		p.Missing = c
	}
	return p
}

// SSEWriter writes Server-Sent Events. Documents in a batch report progress from
// several goroutines, so writes are serialized. After the first failed write (usually a
// disconnected client) every later write is dropped and Err reports the failure.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	nextID int
	err    error
}

// NewSSEWriter sets the event-stream headers on w and commits the response.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends data as JSON under the given event name.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, jsonData); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteProgress sends a pipeline progress event.
func (s *SSEWriter) WriteProgress(ev pipeline.ProgressEvent) error {
	return s.WriteEvent(EventProgress, progressPayload(ev))
}

// WriteResult sends the batch response.
func (s *SSEWriter) WriteResult(resp ProcessResponse) error {
	return s.WriteEvent(EventResult, resp)
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent(EventError, map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends the final event of a batch with its document counts.
func (s *SSEWriter) WriteComplete(batch *pipeline.BatchResult) {
	complete, insufficient, failed := batch.Counts()
	s.WriteEvent(EventComplete, CompletePayload{ //nolint:errcheck
		RunID:        batch.RunID.String(),
		Complete:     complete,
		Insufficient: insufficient,
		Failed:       failed,
		Status:       "completed",
	})
}

// Err returns the first write failure, if any.
func (s *SSEWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
