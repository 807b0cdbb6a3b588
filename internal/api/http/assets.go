package http

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campushub/campushub-sms/internal/school"
	"github.com/campushub/campushub-sms/internal/storage"
)

const maxUploadBytes = 16 << 20

// UploadAssetHandler stores an announcement attachment and returns the
// key to reference it by.
func UploadAssetHandler(blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			badRequest(w, "multipart form required (max 16MB)")
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file field required")
			return
		}
		defer f.Close()

		name := filepath.Base(hdr.Filename)
		key := "attachments/" + uuid.NewString() + "/" + name
		if _, err := blobs.Put(key, f); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "File uploaded successfully", school.Attachment{
			FileName:    name,
			Key:         key,
			ContentType: hdr.Header.Get("Content-Type"),
		})
	}
}

// DownloadAssetHandler streams a stored attachment back. The key is the
// wildcard remainder of the route.
func DownloadAssetHandler(blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		rc, err := blobs.Get(key)
		if err != nil {
			if os.IsNotExist(err) {
				writeErr(w, school.ErrNotFound)
				return
			}
			writeErr(w, err)
			return
		}
		defer rc.Close()

		ct := mime.TypeByExtension(filepath.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	}
}
