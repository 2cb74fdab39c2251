package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/usecase"
	"github.com/secmon-lab/dermis/pkg/utils/errutil"
	"github.com/secmon-lab/dermis/pkg/utils/safe"
)

const (
	multipartMemory = 8 << 20
	imageFormField  = "image"
)

type skinAnalyzeRequest struct {
	Images []string `json:"images"`
}

// skinAnalyzeHandler accepts either multipart/form-data with one or more "image"
// files, or JSON {"images": [base64...]}.
func skinAnalyzeHandler(uc SkinUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		images, err := readImages(r)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		signal, err := uc.Analyze(ctx, userIDFrom(ctx), images)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, usecase.ErrNoImages) {
				status = http.StatusBadRequest
			}
			errutil.HandleHTTP(ctx, w, err, status)
			return
		}

		writeJSON(w, r, http.StatusOK, signal)
	}
}

func readImages(r *http.Request) ([][]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid content type")
	}

	switch mediaType {
	case "application/json":
		var req skinAnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, goerr.Wrap(err, "failed to decode analyze request")
		}
		return decodeImages(req.Images)

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, goerr.Wrap(err, "failed to parse multipart form")
		}
		var images [][]byte
		for _, fh := range r.MultipartForm.File[imageFormField] {
			f, err := fh.Open()
			if err != nil {
				return nil, goerr.Wrap(err, "failed to open uploaded image", goerr.V("filename", fh.Filename))
			}
			data, err := io.ReadAll(f)
			safe.Close(r.Context(), f)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to read uploaded image", goerr.V("filename", fh.Filename))
			}
			images = append(images, data)
		}
		return images, nil

	default:
		return nil, goerr.New("unsupported content type", goerr.V("content_type", mediaType))
	}
}
