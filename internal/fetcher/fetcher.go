package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading EDGAR resources.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Non-200
	// responses and network failures are returned as *model.TransportError.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// ReadAll downloads url and returns its full body, capped at maxBytes when
// maxBytes is positive.
func ReadAll(ctx context.Context, f Fetcher, url string, maxBytes int64) ([]byte, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var r io.Reader = body
	if maxBytes > 0 {
		r = io.LimitReader(body, maxBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", url)
	}
	return data, nil
}
