package vector

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Save writes the index's normalized vectors to path as a small
// length-prefixed float32 binary: a uint32 count, a uint32 dim, then
// count*dim little-endian float32 values in label order. The sibling
// idmap.json (SaveIDMap) is what makes the file meaningful; this format
// exists purely to avoid re-embedding on every process start.
func (idx *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(errs.KindTransient, err, "create vector index file %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(idx.vectors))); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "write vector index header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Dim)); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "write vector index header")
	}
	for _, v := range idx.vectors {
		for _, x := range v {
			if err := binary.Write(w, binary.LittleEndian, bitsOf(x)); err != nil {
				return errs.Wrapf(errs.KindTransient, err, "write vector index body")
			}
		}
	}
	if err := w.Flush(); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "flush vector index file")
	}
	return nil
}

// Load reads an index file written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(errs.KindNotFound, err, "open vector index file %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrapf(errs.KindIntegrity, err, "read vector index header")
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, errs.Wrapf(errs.KindIntegrity, err, "read vector index header")
	}

	idx := &Index{Dim: int(dim), vectors: make([][]float32, count)}
	for i := range idx.vectors {
		v := make([]float32, dim)
		for j := range v {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				if err == io.EOF {
					return nil, errs.New(errs.KindIntegrity, "vector index file truncated")
				}
				return nil, errs.Wrapf(errs.KindIntegrity, err, "read vector index body")
			}
			v[j] = math.Float32frombits(bits)
		}
		idx.vectors[i] = v
	}
	return idx, nil
}

func bitsOf(f float32) uint32 { return math.Float32bits(f) }
