package server

import (
	"fmt"
	"net/http"

	"myride/internal/app"
)

// formUploads parses the multipart body and opens every file under the given
// field. Files stay open until the request completes.
func (s *Server) formUploads(r *http.Request, field string) ([]app.Upload, error) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid form data")
	}
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	uploads := make([]app.Upload, 0, len(headers))
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			return nil, fmt.Errorf("open uploaded file %s", hdr.Filename)
		}
		uploads = append(uploads, app.Upload{
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Reader:      f,
		})
	}
	return uploads, nil
}
