package request

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// DefaultMaxMemory bounds how much of a multipart body is kept in memory.
const DefaultMaxMemory = 10 << 20

const defaultFileContentType = "application/octet-stream"

// UploadFile is a file part of a multipart body.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	data        []byte
}

// NewUploadFile builds an UploadFile. An empty contentType defaults to
// application/octet-stream.
func NewUploadFile(filename, contentType string, data []byte) *UploadFile {
	if contentType == "" {
		contentType = defaultFileContentType
	}
	return &UploadFile{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		data:        data,
	}
}

// Read returns the file content.
func (f *UploadFile) Read() []byte { return f.data }

// Reader returns a reader over the file content.
func (f *UploadFile) Reader() io.Reader { return bytes.NewReader(f.data) }

// Form is a parsed multipart body. The first occurrence of a name wins.
type Form struct {
	Fields map[string]string
	Files  map[string]*UploadFile
}

// IsMultipart reports whether contentType is multipart/form-data.
func IsMultipart(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "multipart/form-data"
}

// ParseMultipart parses body according to contentType.
func ParseMultipart(contentType string, body []byte, maxMemory int64) (*Form, error) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "multipart/form-data" {
		return nil, ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.Join(ErrInvalidMultipart, errors.New("missing boundary"))
	}
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}

	form := &Form{Fields: map[string]string{}, Files: map[string]*UploadFile{}}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	var used int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, errors.Join(ErrInvalidMultipart, err)
		}
		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, maxMemory-used+1))
		part.Close()
		if err != nil {
			return nil, errors.Join(ErrInvalidMultipart, err)
		}
		used += int64(len(data))
		if used > maxMemory {
			return nil, errors.Join(ErrInvalidMultipart, errors.New("multipart body exceeds memory limit"))
		}

		if filename := part.FileName(); filename != "" {
			if _, dup := form.Files[name]; !dup {
				form.Files[name] = NewUploadFile(sanitizeFilename(filename), part.Header.Get("Content-Type"), data)
			}
			continue
		}
		if _, dup := form.Fields[name]; !dup {
			form.Fields[name] = string(data)
		}
	}
}

func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")
	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}
	return filename
}
