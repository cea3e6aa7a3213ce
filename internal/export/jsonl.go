package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/blockedby/tchan/internal/models"
)

// JSONLWriter writes one JSON object per line.
type JSONLWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a new JSON lines writer
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{buf: buf, enc: enc}
}

func (j *JSONLWriter) Write(_ context.Context, msg *models.ChannelMessage) error {
	if err := j.enc.Encode(msg); err != nil {
		return fmt.Errorf("encode %s: %w", msg.Permalink(), err)
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (j *JSONLWriter) Flush() error {
	return j.buf.Flush()
}
