/*
	regionmap, top-down map renderer for block game saves
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Tnze/go-mc/save/region"
	"github.com/maxsupermanhd/regionmap/primitives"
)

var ErrUnrecognizedFile = errors.New("not a region file name")

var (
	regionFnameRegexp = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)
)

func ExtractRegionPath(fname string, xx, zz *int) bool {
	r := regionFnameRegexp.FindAllStringSubmatch(fname, -1)
	if len(r) != 1 {
		return false
	}
	if len(r[0]) != 3 {
		return false
	}
	var err error
	var x, z int
	x, err = strconv.Atoi(r[0][1])
	if err != nil {
		return false
	}
	z, err = strconv.Atoi(r[0][2])
	if err != nil {
		return false
	}
	if xx != nil {
		*xx = x
	}
	if zz != nil {
		*zz = z
	}
	return true
}

// Open reads the whole file, coordinates come from its r.x.z.mca name
func Open(path string) (*Region, error) {
	var c primitives.RegionCoords
	if !ExtractRegionPath(filepath.Base(path), &c.X, &c.Z) {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedFile, filepath.Base(path))
	}
	return OpenAt(path, c)
}

func OpenAt(path string, coords primitives.RegionCoords) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := New(data, coords)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// RegionPath is the file name of region c inside dir
func RegionPath(dir string, c primitives.RegionCoords) string {
	return filepath.Join(dir, fmt.Sprintf("r.%d.%d.mca", c.X, c.Z))
}

type File struct {
	Path   string
	Coords primitives.RegionCoords
	Size   int64
}

// ListRegionFiles returns region files in dir sorted by z then x,
// other files are ignored
func ListRegionFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	ret := []File{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var c primitives.RegionCoords
		if !ExtractRegionPath(e.Name(), &c.X, &c.Z) {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		ret = append(ret, File{
			Path:   filepath.Join(dir, e.Name()),
			Coords: c,
			Size:   size,
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Coords.Z != ret[j].Coords.Z {
			return ret[i].Coords.Z < ret[j].Coords.Z
		}
		return ret[i].Coords.X < ret[j].Coords.X
	})
	return ret, nil
}

// AbsToRel converts absolute chunk coordinates to coordinates inside
// their region
func AbsToRel(abs primitives.ChunkCoords) primitives.ChunkCoords {
	x, z := region.In(abs.X, abs.Z)
	return primitives.ChunkCoords{X: x, Z: z}
}

// RegionOf returns region holding absolute chunk coordinates
func RegionOf(abs primitives.ChunkCoords) primitives.RegionCoords {
	x, z := region.At(abs.X, abs.Z)
	return primitives.RegionCoords{X: x, Z: z}
}

// DimensionPath returns folder with region files of a dimension
// inside world save folder
func DimensionPath(world, dimension string) string {
	switch strings.TrimPrefix(dimension, "minecraft:") {
	case "overworld", "":
		return filepath.Join(world, "region")
	case "the_end":
		return filepath.Join(world, "DIM1", "region")
	case "the_nether":
		return filepath.Join(world, "DIM-1", "region")
	}
	ns, name, ok := strings.Cut(dimension, ":")
	if !ok {
		ns, name = "minecraft", dimension
	}
	return filepath.Join(world, "dimensions", ns, name, "region")
}
