package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record is one image (and optional class label) read from a WebDataset shard.
type Record struct {
	Key   string
	Image []byte
	Label int
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// pairing collects the members of one key until both halves are present.
type pairing struct {
	image    []byte
	label    int
	hasLabel bool
}

func (p *pairing) complete() bool { return len(p.image) > 0 && p.hasLabel }

// shardReader pairs .jpg/.jpeg/.png entries with .cls entries sharing a key.
type shardReader struct {
	tr       *tar.Reader
	limit    int
	open     map[string]*pairing
	firstSee []string
}

func newShardReader(r io.Reader, limit int) *shardReader {
	return &shardReader{
		tr:    tar.NewReader(bufio.NewReader(r)),
		limit: limit,
		open:  make(map[string]*pairing),
	}
}

// next advances to the next paired record. It returns io.EOF when the archive
// is exhausted; unpaired images are then available from leftovers.
func (s *shardReader) next() (Record, error) {
	for {
		hdr, err := s.tr.Next()
		if err != nil {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			return Record{}, errors.Wrap(err, "read tar")
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		base := path.Base(hdr.Name)
		ext := strings.ToLower(path.Ext(base))
		if !isImageExt(ext) && ext != ".cls" {
			continue
		}
		key := base[:len(base)-len(ext)]
		p := s.open[key]
		if p == nil {
			p = &pairing{}
			s.open[key] = p
			s.firstSee = append(s.firstSee, key)
		}
		body, err := io.ReadAll(s.tr)
		if err != nil {
			return Record{}, errors.Wrapf(err, "read member %s", base)
		}
		if ext == ".cls" {
			n, err := strconv.Atoi(strings.TrimSpace(string(body)))
			if err != nil {
				return Record{}, errors.Wrapf(err, "parse label %s", base)
			}
			p.label, p.hasLabel = n, true
		} else {
			p.image = body
		}
		if len(s.open) > s.limit {
			return Record{}, ErrPendingOverflow
		}
		if p.complete() {
			delete(s.open, key)
			return Record{Key: key, Image: p.image, Label: p.label}, nil
		}
	}
}

// leftovers returns the still-unpaired images in first-seen order with Label
// -1, and the number of labels that never got an image.
func (s *shardReader) leftovers() ([]Record, int) {
	var recs []Record
	orphans := 0
	for _, key := range s.firstSee {
		p, ok := s.open[key]
		if !ok {
			continue
		}
		if len(p.image) == 0 {
			orphans++
			continue
		}
		recs = append(recs, Record{Key: key, Image: p.image, Label: -1})
	}
	return recs, orphans
}

// StreamShard streams records from the shard at path. An image is emitted as
// soon as its .cls entry has also been seen; images that never get a label are
// emitted with Label -1 once the shard has been read to the end.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Record, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Record)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if err := streamShard(ctx, path, pendingCap, out); err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func streamShard(ctx context.Context, file string, pendingCap int, out chan<- Record) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open shard")
	}
	defer f.Close()

	send := func(rec Record) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- rec:
			return nil
		}
	}

	sr := newShardReader(f, pendingCap)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := sr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := send(rec); err != nil {
			return err
		}
	}

	rest, orphans := sr.leftovers()
	for _, rec := range rest {
		if err := send(rec); err != nil {
			return err
		}
	}
	if orphans > 0 {
		return errors.Errorf("%d labels without image", orphans)
	}
	return nil
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
