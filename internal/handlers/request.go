package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/carmarket/backend/internal/media"
	"github.com/carmarket/backend/internal/models"
)

const (
	maxJSONBody     = 1 << 20
	multipartMemory = 32 << 20
	imagesField     = "images"
	dataField       = "data"
)

// requestError is a client mistake found while reading the request.
type requestError struct {
	message string
}

var errInvalidBody = &requestError{message: "Invalid request body"}

func (e *requestError) Error() string {
	return e.message
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// decodeJSON reads an optional JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

// readCarRequest accepts either a JSON body or a multipart form. Form fields
// arrive individually or as one JSON document in the "data" field; images
// arrive under "images".
func (o Options) readCarRequest(w http.ResponseWriter, r *http.Request) (*models.CarInput, []media.File, error) {
	in := &models.CarInput{}
	if !isMultipart(r) {
		if err := decodeJSON(w, r, in); err != nil {
			return nil, nil, err
		}
		return in, nil, nil
	}

	if err := o.parseMultipart(w, r); err != nil {
		return nil, nil, err
	}
	defer r.MultipartForm.RemoveAll()

	if raw := r.FormValue(dataField); raw != "" {
		if err := json.Unmarshal([]byte(raw), in); err != nil {
			return nil, nil, errInvalidBody
		}
	} else {
		for name, field := range in.Fields() {
			if values, ok := r.MultipartForm.Value[name]; ok && len(values) > 0 {
				*field = models.FormField(values[0])
			}
		}
	}

	files, err := o.readImages(r)
	if err != nil {
		return nil, nil, err
	}
	return in, files, nil
}

// parseMultipart parses a multipart body within the image size budget. The
// server only cleans up forms parsed on the request it dispatched, and
// middleware hands handlers a copy, so callers must RemoveAll the form.
func (o Options) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(models.MaxImages)*o.MaxImageBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
		return &requestError{message: "File too large or invalid form data"}
	}
	return nil
}

// readImages loads at most models.MaxImages files from a parsed multipart form.
func (o Options) readImages(r *http.Request) ([]media.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[imagesField]
	if len(headers) > models.MaxImages {
		headers = headers[:models.MaxImages]
	}

	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		if o.MaxImageBytes > 0 && fh.Size > o.MaxImageBytes {
			return nil, &requestError{message: fmt.Sprintf("Image %s exceeds %d MB", fh.Filename, o.MaxImageBytes>>20)}
		}
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) (media.File, error) {
	src, err := fh.Open()
	if err != nil {
		return media.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return media.File{}, err
	}
	contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return media.File{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

// writeRequestError reports a failure from reading the request body.
func (o Options) writeRequestError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusBadRequest, reqErr.message)
		return
	}
	o.writeServiceError(w, r, op, err)
}
