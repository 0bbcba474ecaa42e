package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// On-disk layout inside the index directory:
//
//	manifest.json — chunk metadata in index order
//	vectors.bin   — uint32 LE dimension, then len(manifest)*dim float32 LE
//	docs.json     — fingerprint table for change detection
const (
	manifestFile = "manifest.json"
	vectorsFile  = "vectors.bin"
	docsFile     = "docs.json"
)

// Load reads a snapshot from dir. Returns an empty snapshot (not an error)
// when the index has never been built.
func Load(dir string) (*Snapshot, error) {
	manPath := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(manPath)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, &snap.Chunks); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	vecs, err := decodeVectors(raw, len(snap.Chunks))
	if err != nil {
		return nil, err
	}
	for i := range snap.Chunks {
		snap.Chunks[i].Vector = vecs[i]
	}

	docsData, err := os.ReadFile(filepath.Join(dir, docsFile))
	if err == nil {
		if err := json.Unmarshal(docsData, &snap.Docs); err != nil {
			return nil, fmt.Errorf("parse docs table: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read docs table: %w", err)
	}

	return snap, nil
}

// Write persists a snapshot to dir. Files are written to temp names first and
// renamed, so a crashed write never leaves a half-updated index behind.
func Write(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	manData, err := json.MarshalIndent(snap.Chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	docsData, err := json.MarshalIndent(snap.Docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal docs table: %w", err)
	}

	vecs := make([][]float32, len(snap.Chunks))
	for i := range snap.Chunks {
		vecs[i] = snap.Chunks[i].Vector
	}

	files := map[string][]byte{
		manifestFile: manData,
		vectorsFile:  encodeVectors(vecs),
		docsFile:     docsData,
	}
	for name, data := range files {
		if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func encodeVectors(vecs [][]float32) []byte {
	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}
	buf := make([]byte, 4, 4+len(vecs)*dim*4)
	binary.LittleEndian.PutUint32(buf, uint32(dim))
	for _, v := range vecs {
		for _, f := range v {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

func decodeVectors(data []byte, count int) ([][]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("invalid vectors file: %d bytes", len(data))
	}
	dim := int(binary.LittleEndian.Uint32(data))
	body := data[4:]
	if count*dim*4 != len(body) {
		return nil, fmt.Errorf("vectors file size mismatch: want %d chunks of dim %d, have %d bytes",
			count, dim, len(body))
	}
	vecs := make([][]float32, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		off := i * dim * 4
		for j := 0; j < dim; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off+j*4:]))
		}
		vecs[i] = v
	}
	return vecs, nil
}
