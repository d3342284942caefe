package editor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// maxLineSize bounds a single request line. Whole documents travel in
// content fields, so the default scanner limit is far too small.
const maxLineSize = 64 * 1024 * 1024

type inputLine struct {
	num  int
	data []byte
}

// Serve reads requests from r, one JSON object per line, and writes one
// response line per request to w. It returns nil at EOF and ctx.Err() when
// ctx is cancelled. A line that does not decode is answered with an error
// response and does not end the session.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h *Handler) error {
	lines := make(chan inputLine)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		num := 0
		for scanner.Scan() {
			num++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			select {
			case lines <- inputLine{num: num, data: bytes.Clone(data)}:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return quillerrors.Wrap(err, "failed to read editor input")
					}
				default:
				}
				return nil
			}
			if err := enc.Encode(h.handleLine(line)); err != nil {
				return quillerrors.Wrap(err, "failed to write response")
			}
		}
	}
}

func (h *Handler) handleLine(line inputLine) Response {
	var req Request
	if err := json.Unmarshal(line.data, &req); err != nil {
		protoErr := quillerrors.NewProtocolError(line.num, "invalid JSON request").WithCause(err)
		h.logger.Warn("dropping malformed request", "line", line.num, "error", err)
		return failure(0, protoErr)
	}

	resp := h.Handle(req)
	if resp.Error != "" {
		h.logger.Debug("request failed", "id", req.ID, "type", req.Type, "error", resp.Error)
	}
	return resp
}
