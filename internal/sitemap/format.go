package sitemap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"hash/fnv"
	"io"
	"time"
)

// Magic is the 4-byte file signature at the start of every .ctx file.
var Magic = [4]byte{'C', 'T', 'X', 'M'}

const headerSize = 64
const headerReservedSize = 28

// Header flag bits (distinct from per-node NodeFlags).
const (
	HeaderFlagPartial uint16 = 1 << iota
	HeaderFlagPrivacyStripped
	HeaderFlagHasClusters
)

// CurrentFormatVersion is written by Encode and accepted by Open.
const CurrentFormatVersion uint16 = 1

// DomainHash derives the stable u64 fingerprint stored in the header. It is
// a fingerprint only, not a security primitive, so FNV-1a is a deliberate
// stdlib choice: no third-party non-cryptographic hash dependency is wired
// in anywhere (internal/hash/sha256 is reserved for content-addressed blob
// names, a materially different job).
func DomainHash(domain string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(domain))
	return h.Sum64()
}

// Encode serializes m into the .ctx binary layout described in the external
// interfaces design: a 64-byte header, fixed sections in order, and a
// trailing CRC32 over everything preceding it.
func Encode(m *Map) ([]byte, error) {
	if len(m.Features) != int(m.NodeCount) {
		return nil, errDimensionMismatch(fmt.Sprintf("features length %d != node_count %d", len(m.Features), m.NodeCount))
	}

	var body bytes.Buffer

	// url-string table
	for _, u := range m.URL {
		if err := writeString(&body, u); err != nil {
			return nil, err
		}
	}

	// page_type[]
	for _, pt := range m.PageTypes {
		body.WriteByte(byte(pt))
	}

	// confidence[] scaled 0..=250
	for _, c := range m.Confidence {
		body.WriteByte(scaleConfidence(c))
	}

	// flags[]
	for _, f := range m.Flags {
		if err := binary.Write(&body, binary.LittleEndian, f.Uint32()); err != nil {
			return nil, fmt.Errorf("write flags: %w", err)
		}
	}

	// features[] fixed-stride 128xf32
	for _, feat := range m.Features {
		for _, v := range feat {
			if err := binary.Write(&body, binary.LittleEndian, v); err != nil {
				return nil, fmt.Errorf("write feature: %w", err)
			}
		}
	}

	// action_slice[] two u32 per node
	for _, as := range m.ActionSlice {
		if err := binary.Write(&body, binary.LittleEndian, as.Offset); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.LittleEndian, as.Length); err != nil {
			return nil, err
		}
	}

	// edge_index[] size node_count+1
	for _, idx := range m.EdgeIndex {
		if err := binary.Write(&body, binary.LittleEndian, idx); err != nil {
			return nil, fmt.Errorf("write edge_index: %w", err)
		}
	}

	// edges[]
	for _, e := range m.Edges {
		if err := binary.Write(&body, binary.LittleEndian, e.Target); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.LittleEndian, uint16(e.Kind)); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.LittleEndian, e.Weight); err != nil {
			return nil, err
		}
		actionRef := uint8(NoActionRef)
		if e.RequiresAction {
			actionRef = e.ActionRef
		}
		body.WriteByte(actionRef)
	}

	// actions[]
	for _, a := range m.Actions {
		if err := writeString(&body, a.OpcodeCategory); err != nil {
			return nil, err
		}
		if err := writeString(&body, a.OpcodeVariant); err != nil {
			return nil, err
		}
		if err := writeString(&body, a.SelectorOrEndpoint); err != nil {
			return nil, err
		}
		if err := writeString(&body, a.ParamsSchema); err != nil {
			return nil, err
		}
		if a.BrowserRequired {
			body.WriteByte(1)
		} else {
			body.WriteByte(0)
		}
	}

	// optional clusters section
	headerFlags := uint16(0)
	if m.Partial {
		headerFlags |= HeaderFlagPartial
	}
	if m.PrivacyStripped {
		headerFlags |= HeaderFlagPrivacyStripped
	}
	if m.Clusters != nil {
		headerFlags |= HeaderFlagHasClusters
		for _, cid := range m.Clusters.ClusterID {
			if err := binary.Write(&body, binary.LittleEndian, cid); err != nil {
				return nil, err
			}
		}
		if err := binary.Write(&body, binary.LittleEndian, uint32(len(m.Clusters.Centroid))); err != nil {
			return nil, err
		}
		for _, centroid := range m.Clusters.Centroid {
			for _, v := range centroid {
				if err := binary.Write(&body, binary.LittleEndian, v); err != nil {
					return nil, err
				}
			}
		}
	}

	header := make([]byte, headerSize)
	copy(header[0:4], Magic[:])
	binary.LittleEndian.PutUint16(header[4:6], CurrentFormatVersion)
	binary.LittleEndian.PutUint16(header[6:8], headerFlags)
	binary.LittleEndian.PutUint32(header[8:12], m.NodeCount)
	binary.LittleEndian.PutUint32(header[12:16], m.EdgeCount)
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(m.Actions)))
	binary.LittleEndian.PutUint64(header[20:28], uint64(m.CreatedAt.UnixMilli()))
	binary.LittleEndian.PutUint64(header[28:36], DomainHash(m.Domain))
	// header[36:64] stays zeroed (reserved)

	var out bytes.Buffer
	out.Write(header)
	out.Write(body.Bytes())

	crc := crc32.ChecksumIEEE(out.Bytes())
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc)
	out.Write(trailer[:])

	return out.Bytes(), nil
}

// Open deserializes and fully validates a .ctx byte stream, rejecting it
// outright (CorruptMap) on any CRC mismatch, truncation, or invariant
// violation rather than returning a partially usable Map.
func Open(data []byte) (*Map, error) {
	if len(data) < headerSize+4 {
		return nil, errCorruptMap("truncated: shorter than header + trailer")
	}

	body := data[:len(data)-4]
	wantCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	gotCRC := crc32.ChecksumIEEE(body)
	if wantCRC != gotCRC {
		return nil, errCorruptMap("crc32 mismatch")
	}

	header := data[:headerSize]
	if !bytes.Equal(header[0:4], Magic[:]) {
		return nil, errCorruptMap("bad magic")
	}
	formatVersion := binary.LittleEndian.Uint16(header[4:6])
	headerFlags := binary.LittleEndian.Uint16(header[6:8])
	nodeCount := binary.LittleEndian.Uint32(header[8:12])
	edgeCount := binary.LittleEndian.Uint32(header[12:16])
	actionCount := binary.LittleEndian.Uint32(header[16:20])
	createdAtMs := int64(binary.LittleEndian.Uint64(header[20:28]))

	r := bytes.NewReader(data[headerSize : len(data)-4])

	m := &Map{
		FormatVersion:   formatVersion,
		Partial:         headerFlags&HeaderFlagPartial != 0,
		PrivacyStripped: headerFlags&HeaderFlagPrivacyStripped != 0,
		NodeCount:       nodeCount,
		EdgeCount:       edgeCount,
		ActionCount:     actionCount,
		CRC32:           gotCRC,
		CreatedAt:       time.UnixMilli(createdAtMs).UTC(),
	}

	m.URL = make([]string, nodeCount)
	for i := range m.URL {
		s, err := readString(r)
		if err != nil {
			return nil, errCorruptMap("url table: " + err.Error())
		}
		m.URL[i] = s
	}

	m.PageTypes = make([]PageType, nodeCount)
	for i := range m.PageTypes {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errCorruptMap("page_type table: " + err.Error())
		}
		m.PageTypes[i] = PageType(b)
	}

	m.Confidence = make([]float32, nodeCount)
	for i := range m.Confidence {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errCorruptMap("confidence table: " + err.Error())
		}
		m.Confidence[i] = unscaleConfidence(b)
	}

	m.Flags = make([]NodeFlags, nodeCount)
	for i := range m.Flags {
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, errCorruptMap("flags table: " + err.Error())
		}
		m.Flags[i] = NodeFlagsFromUint32(v)
	}

	m.Features = make([][FeatureDims]float32, nodeCount)
	for i := range m.Features {
		for d := 0; d < FeatureDims; d++ {
			var v float32
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, errCorruptMap("features table: " + err.Error())
			}
			m.Features[i][d] = v
		}
	}

	m.ActionSlice = make([]ActionSlice, nodeCount)
	for i := range m.ActionSlice {
		var off, length uint32
		if err := binary.Read(r, binary.LittleEndian, &off); err != nil {
			return nil, errCorruptMap("action_slice table: " + err.Error())
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, errCorruptMap("action_slice table: " + err.Error())
		}
		m.ActionSlice[i] = ActionSlice{Offset: off, Length: length}
	}

	m.EdgeIndex = make([]uint32, nodeCount+1)
	for i := range m.EdgeIndex {
		if err := binary.Read(r, binary.LittleEndian, &m.EdgeIndex[i]); err != nil {
			return nil, errCorruptMap("edge_index table: " + err.Error())
		}
	}

	m.Edges = make([]Edge, edgeCount)
	for i := range m.Edges {
		var target uint32
		var kind uint16
		var weight float32
		if err := binary.Read(r, binary.LittleEndian, &target); err != nil {
			return nil, errCorruptMap("edges table: " + err.Error())
		}
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return nil, errCorruptMap("edges table: " + err.Error())
		}
		if err := binary.Read(r, binary.LittleEndian, &weight); err != nil {
			return nil, errCorruptMap("edges table: " + err.Error())
		}
		actionRef, err := r.ReadByte()
		if err != nil {
			return nil, errCorruptMap("edges table: " + err.Error())
		}
		m.Edges[i] = Edge{
			Target:         target,
			Weight:         weight,
			Kind:           EdgeKind(kind),
			RequiresAction: actionRef != NoActionRef,
			ActionRef:      actionRef,
		}
	}

	m.Actions = make([]Action, actionCount)
	for i := range m.Actions {
		cat, err := readString(r)
		if err != nil {
			return nil, errCorruptMap("actions table: " + err.Error())
		}
		variant, err := readString(r)
		if err != nil {
			return nil, errCorruptMap("actions table: " + err.Error())
		}
		selector, err := readString(r)
		if err != nil {
			return nil, errCorruptMap("actions table: " + err.Error())
		}
		schema, err := readString(r)
		if err != nil {
			return nil, errCorruptMap("actions table: " + err.Error())
		}
		browserRequired, err := r.ReadByte()
		if err != nil {
			return nil, errCorruptMap("actions table: " + err.Error())
		}
		m.Actions[i] = Action{
			OpcodeCategory:     cat,
			OpcodeVariant:      variant,
			SelectorOrEndpoint: selector,
			ParamsSchema:       schema,
			BrowserRequired:    browserRequired != 0,
		}
	}

	if headerFlags&HeaderFlagHasClusters != 0 {
		clusterID := make([]uint32, nodeCount)
		for i := range clusterID {
			if err := binary.Read(r, binary.LittleEndian, &clusterID[i]); err != nil {
				return nil, errCorruptMap("clusters table: " + err.Error())
			}
		}
		var centroidCount uint32
		if err := binary.Read(r, binary.LittleEndian, &centroidCount); err != nil {
			return nil, errCorruptMap("clusters table: " + err.Error())
		}
		centroids := make([][FeatureDims]float32, centroidCount)
		for i := range centroids {
			for d := 0; d < FeatureDims; d++ {
				if err := binary.Read(r, binary.LittleEndian, &centroids[i][d]); err != nil {
					return nil, errCorruptMap("clusters table: " + err.Error())
				}
			}
		}
		m.Clusters = &Clusters{ClusterID: clusterID, Centroid: centroids}
	}

	m.Domain = "" // domain is not name-carrying in the binary payload; callers set it from the file path (see mapbuilder.Open)

	if err := validateInvariants(m); err != nil {
		return nil, err
	}

	return m, nil
}

func validateInvariants(m *Map) error {
	n := int(m.NodeCount)
	if len(m.URL) != n || len(m.PageTypes) != n || len(m.Confidence) != n ||
		len(m.Features) != n || len(m.Flags) != n || len(m.ActionSlice) != n {
		return errCorruptMap("parallel array length mismatch")
	}
	for i, feat := range m.Features {
		for _, v := range feat {
			if isNaNOrInf(v) {
				return errCorruptMap("non-finite feature value")
			}
		}
		pt := m.PageTypes[i]
		if idx := pt.OneHotIndex(); idx >= 0 {
			for d := 0; d < pageTypeCount; d++ {
				want := float32(0)
				if d == idx {
					want = 1
				}
				if feat[d] != want {
					return errCorruptMap("one-hot page_type region inconsistent with page_type field")
				}
			}
		}
		hasPrice := m.Flags[i].Test(FlagHasPrice)
		if hasPrice {
			if feat[DimPrice] < 0 || isNaNOrInf(feat[DimPrice]) {
				return errCorruptMap("has_price set but price invalid")
			}
		} else if feat[DimPrice] != 0 {
			return errCorruptMap("has_price clear but price non-zero")
		}
	}
	if len(m.EdgeIndex) != n+1 {
		return errCorruptMap("edge_index length mismatch")
	}
	for i := 1; i < len(m.EdgeIndex); i++ {
		if m.EdgeIndex[i] < m.EdgeIndex[i-1] {
			return errCorruptMap("edge_index not monotonic")
		}
	}
	if len(m.EdgeIndex) > 0 && m.EdgeIndex[len(m.EdgeIndex)-1] != uint32(len(m.Edges)) {
		return errCorruptMap("edge_index[node_count] != edge_count")
	}
	for _, e := range m.Edges {
		if e.Target >= m.NodeCount {
			return errCorruptMap("edge target out of range")
		}
	}
	if m.PrivacyStripped {
		for _, feat := range m.Features {
			for d := SessionDimsStart; d <= SessionDimsEnd; d++ {
				if feat[d] != 0 {
					return errCorruptMap("privacy-stripped map has non-zero session dims")
				}
			}
		}
	}
	return nil
}

func isNaNOrInf(v float32) bool {
	return v != v || v > maxFinite32 || v < -maxFinite32
}

const maxFinite32 = 3.4028235e38

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write string bytes: %w", err)
	}
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func scaleConfidence(c float32) byte {
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return byte(c*250 + 0.5)
}

func unscaleConfidence(b byte) float32 {
	return float32(b) / 250
}
