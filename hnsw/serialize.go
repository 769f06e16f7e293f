package hnsw

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/hupe1980/hnswgraph/distance"
)

// serializeMagic identifies a HierarchicalIndex binary stream;
// serializeVersion lets the format evolve without silently misreading an
// older one. Byte order is little-endian throughout, whatever the host's.
const (
	serializeMagic   uint32 = 0x484e5357 // "HNSW" read as a big-endian uint32; the stream's first bytes are "WSNH"
	serializeVersion uint8  = 1
)

// ErrUnsupportedVectorStore is returned by Serialize when the index's
// VectorStore is not the built-in FlatVectorStore. Persisting a custom
// codec's own byte layout is that VectorStore implementation's concern —
// spec.md §1 treats the codec/quantization store as opaque and explicitly
// out of this core's scope — not something a generic Serialize can do.
var ErrUnsupportedVectorStore = errors.New("hnsw: serialize requires a FlatVectorStore")

// Serialize writes idx's full state — options, label map, base vectors,
// and every layer's adjacency — to w in a single implementation-defined
// binary format. Deserialize(Serialize(idx)) round-trips: the same
// KNNSearch calls against the restored index return the same results.
func (idx *HierarchicalIndex) Serialize(w io.Writer) error {
	fvs, ok := idx.store.(*FlatVectorStore)
	if !ok {
		return ErrUnsupportedVectorStore
	}

	bw := bufio.NewWriter(w)

	if err := writeU32(bw, serializeMagic); err != nil {
		return err
	}
	if err := writeU8(bw, serializeVersion); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(idx.opts.Dimension)); err != nil {
		return err
	}
	if err := writeU8(bw, uint8(idx.opts.Metric)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(idx.opts.MaxDegreeBase)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(idx.opts.EfConstruct)); err != nil {
		return err
	}
	if err := writeF64(bw, idx.layerMultiplier); err != nil {
		return err
	}

	idx.mu.Lock()
	maxLevel := idx.maxLevel
	entryPoint := idx.entryPoint
	hasEntryPoint := idx.hasEntryPoint
	idx.mu.Unlock()

	if err := writeU32(bw, uint32(maxLevel)); err != nil {
		return err
	}
	if err := writeBool(bw, hasEntryPoint); err != nil {
		return err
	}
	if err := writeU64(bw, uint64(entryPoint)); err != nil {
		return err
	}

	idx.labelMu.Lock()
	nextID := idx.nextID.Load()
	labels := make(map[Label]InnerID, len(idx.labels))
	for l, id := range idx.labels {
		labels[l] = id
	}
	idx.labelMu.Unlock()

	if err := writeU64(bw, uint64(len(labels))); err != nil {
		return err
	}
	for label, id := range labels {
		if err := writeU64(bw, uint64(label)); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(id)); err != nil {
			return err
		}
	}

	if err := writeU64(bw, nextID); err != nil {
		return err
	}
	for id := uint64(0); id < nextID; id++ {
		vec := fvs.vectorAt(InnerID(id))
		for _, f := range vec {
			if err := writeF32(bw, f); err != nil {
				return err
			}
		}
	}

	for layer := 0; layer < maxLevel; layer++ {
		for id := uint64(0); id < nextID; id++ {
			neighbors := idx.adjacency.GetNeighbors(layer, InnerID(id))
			if err := writeU32(bw, uint32(len(neighbors))); err != nil {
				return err
			}
			for _, n := range neighbors {
				if err := writeU64(bw, uint64(n)); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}

// Deserialize reconstructs a HierarchicalIndex from a stream written by
// Serialize. Any VectorStore supplied via WithVectorStore in optFns is
// ignored; the restored index always uses a freshly populated
// FlatVectorStore, since the persisted vectors came from one.
func Deserialize(r io.Reader, optFns ...Option) (*HierarchicalIndex, error) {
	br := newByteReader(r)

	magic, err := br.u32()
	if err != nil {
		return nil, newDeserializationError("magic", err)
	}
	if magic != serializeMagic {
		return nil, newDeserializationError("magic", errors.New("bad magic: not a hnsw stream"))
	}

	version, err := br.u8()
	if err != nil {
		return nil, newDeserializationError("version", err)
	}
	if version != serializeVersion {
		return nil, newDeserializationError("version", errors.New("unsupported format version"))
	}

	dim, err := br.u32()
	if err != nil {
		return nil, newDeserializationError("dimension", err)
	}
	metricByte, err := br.u8()
	if err != nil {
		return nil, newDeserializationError("metric", err)
	}
	maxDegreeBase, err := br.u32()
	if err != nil {
		return nil, newDeserializationError("max_degree_base", err)
	}
	efConstruct, err := br.u32()
	if err != nil {
		return nil, newDeserializationError("ef_construct", err)
	}
	layerMultiplier, err := br.f64()
	if err != nil {
		return nil, newDeserializationError("layer_multiplier", err)
	}
	maxLevel, err := br.u32()
	if err != nil {
		return nil, newDeserializationError("max_level", err)
	}
	hasEntryPoint, err := br.boolean()
	if err != nil {
		return nil, newDeserializationError("has_entry_point", err)
	}
	entryPoint, err := br.u64()
	if err != nil {
		return nil, newDeserializationError("entry_point", err)
	}

	labelCount, err := br.u64()
	if err != nil {
		return nil, newDeserializationError("label_count", err)
	}
	labels := make(map[Label]InnerID, labelCount)
	for i := uint64(0); i < labelCount; i++ {
		label, err := br.u64()
		if err != nil {
			return nil, newDeserializationError("label", err)
		}
		id, err := br.u64()
		if err != nil {
			return nil, newDeserializationError("label_inner_id", err)
		}
		labels[Label(label)] = InnerID(id)
	}

	nextID, err := br.u64()
	if err != nil {
		return nil, newDeserializationError("next_id", err)
	}

	vectors := make([][]float32, nextID)
	for id := uint64(0); id < nextID; id++ {
		v := make([]float32, dim)
		for j := range v {
			f, err := br.f32()
			if err != nil {
				return nil, newDeserializationError("vector", err)
			}
			v[j] = f
		}
		vectors[id] = v
	}

	opts := append([]Option{
		WithDimension(int(dim)),
		WithMetric(distance.Metric(metricByte)),
		WithMaxDegree(int(maxDegreeBase)),
		WithEfConstruct(int(efConstruct)),
		WithLayerMultiplier(layerMultiplier),
	}, optFns...)
	opts = append(opts, WithVectorStore(nil))

	idx, err := New(opts...)
	if err != nil {
		return nil, err
	}

	fvs, ok := idx.store.(*FlatVectorStore)
	if !ok {
		return nil, ErrUnsupportedVectorStore
	}
	if nextID > 0 {
		if err := fvs.BatchInsert(vectors, 0); err != nil {
			return nil, err
		}
	}

	idx.nextID.Store(nextID)
	idx.labels = labels
	idx.maxLevel = int(maxLevel)
	idx.hasEntryPoint = hasEntryPoint
	idx.entryPoint = InnerID(entryPoint)

	for layer := 0; layer < int(maxLevel); layer++ {
		idx.adjacency.EnsureLayer(layer)
		for id := uint64(0); id < nextID; id++ {
			count, err := br.u32()
			if err != nil {
				return nil, newDeserializationError("neighbor_count", err)
			}
			neighbors := make([]InnerID, count)
			for j := range neighbors {
				n, err := br.u64()
				if err != nil {
					return nil, newDeserializationError("neighbor", err)
				}
				neighbors[j] = InnerID(n)
			}
			idx.adjacency.InsertNeighbors(layer, InnerID(id), neighbors)
		}
		idx.adjacency.IncreaseTotalCount(layer, int64(nextID))
	}

	return idx, nil
}

func writeU8(w io.Writer, v uint8) error    { return binary.Write(w, binary.LittleEndian, v) }
func writeU32(w io.Writer, v uint32) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeU64(w io.Writer, v uint64) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF32(w io.Writer, v float32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeF64(w io.Writer, v float64) error { return binary.Write(w, binary.LittleEndian, v) }

func writeBool(w io.Writer, v bool) error {
	var b uint8
	if v {
		b = 1
	}
	return writeU8(w, b)
}

// byteReader wraps an io.Reader with fixed-width little-endian readers,
// matching the layout Serialize writes.
type byteReader struct {
	r io.Reader
}

func newByteReader(r io.Reader) *byteReader { return &byteReader{r: r} }

func (br *byteReader) u8() (uint8, error) {
	var v uint8
	err := binary.Read(br.r, binary.LittleEndian, &v)
	return v, err
}

func (br *byteReader) u32() (uint32, error) {
	var v uint32
	err := binary.Read(br.r, binary.LittleEndian, &v)
	return v, err
}

func (br *byteReader) u64() (uint64, error) {
	var v uint64
	err := binary.Read(br.r, binary.LittleEndian, &v)
	return v, err
}

func (br *byteReader) f32() (float32, error) {
	var v float32
	err := binary.Read(br.r, binary.LittleEndian, &v)
	return v, err
}

func (br *byteReader) f64() (float64, error) {
	var v float64
	err := binary.Read(br.r, binary.LittleEndian, &v)
	return v, err
}

func (br *byteReader) boolean() (bool, error) {
	v, err := br.u8()
	return v != 0, err
}
