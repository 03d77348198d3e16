package keys

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// FileSource reads key material from the local filesystem.
type FileSource struct{}

func (FileSource) Fetch(_ context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(ErrNotFound, path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	data, err := readKeyMaterial(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}
