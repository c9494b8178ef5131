package library

import (
	"io/fs"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	VideoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv", ".webm"}

	ErrEmpty = errors.New("no videos available")
)

type folder struct {
	root   string
	videos *btree.BTreeG[string]
	// sorted snapshot of videos for random picks
	list []string
}

// Library indexes the video files under a channel's folders.
type Library struct {
	m       sync.RWMutex
	folders []*folder
}

func Scan(roots []string) (*Library, error) {
	lib := &Library{}
	for _, root := range roots {
		f := &folder{root: root, videos: btree.NewG[string](2, lessString)}
		lib.folders = append(lib.folders, f)
	}
	if _, _, err := lib.Rescan(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Rescan walks every folder again and reports how many videos appeared and vanished.
func (lib *Library) Rescan() (added int, removed int, err error) {
	lib.m.Lock()
	defer lib.m.Unlock()

	for _, f := range lib.folders {
		found, err := walkVideos(f.root)
		if err != nil {
			return added, removed, errors.Wrapf(err, "cannot scan %s", f.root)
		}

		seen := btree.NewG[string](2, lessString)
		for _, path := range found {
			seen.ReplaceOrInsert(path)
			if _, existed := f.videos.ReplaceOrInsert(path); !existed {
				added++
			}
		}

		var gone []string
		f.videos.Ascend(func(path string) bool {
			if !seen.Has(path) {
				gone = append(gone, path)
			}
			return true
		})
		for _, path := range gone {
			f.videos.Delete(path)
			removed++
		}

		f.list = f.list[:0]
		f.videos.Ascend(func(path string) bool {
			f.list = append(f.list, path)
			return true
		})
	}

	if added != 0 || removed != 0 {
		logrus.Debugf("Library rescan: %d added, %d removed", added, removed)
	}
	return added, removed, nil
}

// Random picks a folder first, then a video inside it, so small folders are not drowned out.
func (lib *Library) Random(rng *rand.Rand) (string, error) {
	lib.m.RLock()
	defer lib.m.RUnlock()

	nonEmpty := make([]*folder, 0, len(lib.folders))
	for _, f := range lib.folders {
		if len(f.list) != 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) == 0 {
		return "", ErrEmpty
	}

	f := nonEmpty[rng.Intn(len(nonEmpty))]
	return f.list[rng.Intn(len(f.list))], nil
}

func (lib *Library) Counts() (folders int, videos int) {
	lib.m.RLock()
	defer lib.m.RUnlock()
	for _, f := range lib.folders {
		videos += f.videos.Len()
	}
	return len(lib.folders), videos
}

func IsVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range VideoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func walkVideos(root string) ([]string, error) {
	var res []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsVideo(d.Name()) {
			res = append(res, path)
		}
		return nil
	})
	return res, err
}

func lessString(a, b string) bool {
	return a < b
}
