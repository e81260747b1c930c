package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

// uploadResp is the JSON response returned after a successful file upload.
type uploadResp struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// handleUpload handles POST /api/upload.
//
// The body must be multipart with a part named "file"; its raw filename is
// sanitized and the bytes are streamed to the store under that name. The
// whole body is capped at MaxContentLength.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit := s.cfg.Upload.MaxContentLength

	name, n, err := s.receiveUpload(w, r, limit)
	if err != nil {
		status, _ := statusFor(err)
		s.metrics.RecordUploadFailure(status < http.StatusInternalServerError)
		writeError(w, r, err)
		return
	}

	s.metrics.RecordUpload(n, time.Since(start))
	hlog.FromRequest(r).Info().
		Str("filename", name).
		Int64("bytes", n).
		Str("location", s.store.Location()).
		Msg("upload_stored")
	s.audit(r, AuditUpload, fmt.Sprintf("stored %s (%d bytes)", name, n))

	writeJSON(w, http.StatusOK, uploadResp{Status: "success", Filename: name})
}

// receiveUpload finds the file part, sanitizes its name and saves it. It
// returns the stored name and the number of bytes written.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, int64, error) {
	if r.ContentLength > limit {
		return "", 0, ErrPayloadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		// Not a multipart body at all, so there is no file field.
		return "", 0, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", 0, ErrMissingFile
		}
		if err != nil {
			if isTooLarge(err) {
				return "", 0, ErrPayloadTooLarge
			}
			return "", 0, fmt.Errorf("%w: %v", ErrMalformedMultipart, err)
		}

		raw, isFile := rawFileName(part)
		if part.FormName() != "file" || !isFile {
			_ = part.Close()
			continue
		}
		defer func() { _ = part.Close() }()

		if raw == "" {
			return "", 0, ErrEmptyFilename
		}
		name := SanitizeFilename(raw)
		if name == "" {
			return "", 0, fmt.Errorf("%w: %q has no usable characters", ErrEmptyFilename, raw)
		}

		src := &limitWatchReader{r: part}
		n, err := s.store.Save(r.Context(), name, part.Header.Get("Content-Type"), src)
		if err != nil {
			if src.tooLarge || isTooLarge(err) {
				return "", 0, ErrPayloadTooLarge
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return "", 0, fmt.Errorf("%w: %v", ErrMalformedMultipart, err)
			}
			return "", 0, fmt.Errorf("save %s: %w", name, err)
		}
		return name, n, nil
	}
}

// rawFileName returns the filename disposition parameter exactly as the
// client sent it. multipart.Part.FileName applies filepath.Base, which would
// hide traversal attempts from the sanitizer. isFile is false when the part
// carries no filename parameter at all, i.e. it is a plain form value.
func rawFileName(p *multipart.Part) (name string, isFile bool) {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, isFile = params["filename"]
	return name, isFile
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// limitWatchReader remembers whether the body cap tripped while the store
// was reading, since stores may wrap the error beyond recognition.
type limitWatchReader struct {
	r        io.Reader
	tooLarge bool
}

func (l *limitWatchReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && isTooLarge(err) {
		l.tooLarge = true
	}
	return n, err
}
