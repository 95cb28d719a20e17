package handler

import (
	"io"
	"mime/multipart"

	"gear-market/internal/service"
)

func fromHeader(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open:     func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func fromHeaders(fhs []*multipart.FileHeader) []service.Upload {
	out := make([]service.Upload, 0, len(fhs))
	for _, fh := range fhs {
		out = append(out, fromHeader(fh))
	}
	return out
}
