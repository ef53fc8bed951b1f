// Package stager decodes inline file payloads and writes them to the
// upload directory under a stable, collision-resistant reference.
package stager

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

// extPattern keeps references free of anything but a plain extension, no
// matter what the client put in the file name.
var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

type Stager struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Stager{
		dir:    dir,
		logger: logger.With(slog.String("component", "attachment_stager")),
	}, nil
}

// Dir returns the directory staged files are written to, for static serving.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage decodes payload (bare base64 or a data URL) and writes it under a
// new reference derived from a ULID plus the file's extension. The write
// completes, including fsync, before the reference is returned, so a
// routed message never points at a file that is not yet durable.
func (s *Stager) Stage(name, payload string) (string, error) {
	data, err := decodePayload(payload)
	if err != nil {
		return "", fmt.Errorf("decode attachment: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("decode attachment: empty payload")
	}

	ext := filepath.Ext(name)
	if !extPattern.MatchString(ext) {
		// No usable extension on the name; sniff the bytes instead.
		ext = mimetype.Detect(data).Extension()
	}

	ref := ulid.Make().String() + ext
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("sync staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}

	s.logger.Debug("Attachment staged", slog.String("ref", ref), slog.Int("bytes", len(data)))
	return ref, nil
}

// Read returns the bytes previously staged under ref.
func (s *Stager) Read(ref string) ([]byte, error) {
	if ref != filepath.Base(ref) {
		return nil, fmt.Errorf("invalid attachment reference %q", ref)
	}
	return os.ReadFile(filepath.Join(s.dir, ref))
}

// decodePayload accepts either bare base64 or a data URL
// ("data:<mime>;base64,<payload>") and returns the decoded bytes.
func decodePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URL")
		}
		payload = after
	}
	payload = strings.TrimSpace(payload)
	return base64.StdEncoding.DecodeString(payload)
}
