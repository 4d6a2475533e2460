package drive

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"
)

// maxParallelUploads caps concurrent Drive requests per batch.
const maxParallelUploads = 5

// File is one photo in an upload batch.
type File struct {
	Name    string
	Content []byte
}

// UploadAll uploads a batch of photos in parallel and returns their URLs in
// input order. One failed upload fails the whole batch; callers treat photo
// batches as all-or-nothing. Empty URLs from no-op uploaders are dropped.
func UploadAll(ctx context.Context, u Uploader, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)

	for i, f := range files {
		g.Go(func() error {
			url, err := u.Upload(gctx, f.Name, bytes.NewReader(f.Content))
			if err != nil {
				return err
			}
			results[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(results))
	for _, url := range results {
		if url != "" {
			urls = append(urls, url)
		}
	}

	return urls, nil
}
