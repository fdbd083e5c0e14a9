package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Field is one outbound form field. Order is preserved on the wire.
type Field struct {
	Name  string
	Value string
}

// Relay delivers an outbound form to the third-party relay.
type Relay interface {
	Send(ctx context.Context, fields []Field) error
}

// TransportError covers network failures and non-2xx replies.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormRelay posts fields as multipart/form-data, one attempt, no retry.
type FormRelay struct {
	endpoint string
	client   *http.Client
}

var _ Relay = (*FormRelay)(nil)

// NewFormRelay builds a relay client. A zero timeout leaves the transport's
// own connection timeouts in charge.
func NewFormRelay(endpoint string, timeout time.Duration) *FormRelay {
	return &FormRelay{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *FormRelay) Send(ctx context.Context, fields []Field) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return &TransportError{Err: fmt.Errorf("encode field %s: %w", f.Name, err)}
		}
	}
	if err := w.Close(); err != nil {
		return &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "text/html,application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	// the body is never parsed; drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("relay replied %s", resp.Status)}
	}
	return nil
}
