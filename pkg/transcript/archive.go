package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/m-mizutani/goerr/v2"
)

// WriteArchive writes records as zstd-compressed JSON lines, one record per line.
func WriteArchive(path string, records []*Record) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create archive dir", goerr.Value("path", path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to create archive", goerr.Value("path", path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = goerr.Wrap(cerr, "failed to close archive", goerr.Value("path", path))
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return goerr.Wrap(err, "failed to create zstd writer")
	}
	bw := bufio.NewWriterSize(enc, 128*1024)

	je := json.NewEncoder(bw)
	for _, rec := range records {
		if err := je.Encode(rec); err != nil {
			_ = enc.Close()
			return goerr.Wrap(err, "failed to encode record", goerr.Value("id", rec.ID))
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return goerr.Wrap(err, "failed to flush archive")
	}
	if err := enc.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish zstd stream")
	}
	return nil
}

// ReadArchive reads every record written by WriteArchive.
func ReadArchive(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive", goerr.Value("path", path))
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create zstd reader")
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 128*1024))
	var out []*Record
	for {
		var rec Record
		err := jd.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode record", goerr.Value("path", path), goerr.Value("index", len(out)))
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Export writes every record in repo, messages included, to an archive at path.
func Export(ctx context.Context, repo Repository, path string) (int, error) {
	list, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	recs := make([]*Record, 0, len(list))
	for _, r := range list {
		full, err := repo.Load(ctx, r.ID)
		if err != nil {
			return 0, err
		}
		if full != nil {
			recs = append(recs, full)
		}
	}
	if err := WriteArchive(path, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Import saves recs into repo, overwriting records with the same id.
func Import(ctx context.Context, repo Repository, recs []*Record) (int, error) {
	for i, rec := range recs {
		if err := repo.Save(ctx, rec); err != nil {
			return i, goerr.Wrap(err, "failed to import record", goerr.Value("index", i))
		}
	}
	return len(recs), nil
}
