package state

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/codetta-ml/codetta/internal/tensor"
)

// Checkpoints are stored in the safetensors layout: an 8-byte little-endian
// header length, a JSON header mapping tensor names to dtype/shape/offsets,
// then the raw tensor payload. Only F32 tensors are produced or accepted;
// checkpoint precision conversion happens before saving.

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// LoadFile reads a safetensors checkpoint into a Dict. Keys listed in
// dropKeys are skipped; checkpoints written by older trainers carry buffer
// keys (e.g. positional-id caches) that no longer map to parameters.
func LoadFile(path string, dropKeys ...string) (Dict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("state: %s: truncated header", path)
	}
	headerLen := binary.LittleEndian.Uint64(data)
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("state: %s: header length %d exceeds file size", path, headerLen)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("state: %s: parse header: %w", path, err)
	}
	delete(raw, "__metadata__")

	drop := make(map[string]bool, len(dropKeys))
	for _, k := range dropKeys {
		drop[k] = true
	}

	payload := data[8+headerLen:]
	out := make(Dict, len(raw))
	for name, msg := range raw {
		if drop[name] {
			continue
		}
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("state: parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[1] < th.DataOffsets[0] {
			return nil, fmt.Errorf("state: tensor %s: invalid data_offsets", name)
		}
		if th.DType != "F32" {
			return nil, fmt.Errorf("state: tensor %s: unsupported dtype %s", name, th.DType)
		}
		shape := tensor.Shape(th.Shape)
		n := shape.Numel()
		start, end := th.DataOffsets[0], th.DataOffsets[1]
		if end-start != int64(n*4) || end > int64(len(payload)) {
			return nil, fmt.Errorf("state: tensor %s: payload size mismatch", name)
		}
		vals := make([]float32, n)
		for i := 0; i < n; i++ {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[start+int64(i*4):]))
		}
		out[name] = tensor.NewDense(shape, vals)
	}
	return out, nil
}

// SaveFile writes d as a safetensors checkpoint. Tensors are laid out in
// sorted name order so identical dicts produce identical files.
func SaveFile(path string, d Dict) error {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorHeader, len(d))
	var offset int64
	for _, name := range names {
		t := d[name]
		size := int64(len(t.Data) * 4)
		header[name] = tensorHeader{
			DType:       "F32",
			Shape:       []int(t.Shape),
			DataOffsets: []int64{offset, offset + size},
		}
		offset += size
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("state: encode header: %w", err)
	}

	buf := make([]byte, 0, 8+len(headerBytes)+int(offset))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	for _, name := range names {
		for _, v := range d[name].Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return os.WriteFile(path, buf, 0o644)
}
